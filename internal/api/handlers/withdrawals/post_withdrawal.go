package withdrawals

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/api/httperrors"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

func PostWithdrawalRoute(s *api.Server) *echo.Route {
	return s.Router.Withdrawals.POST("", postWithdrawalHandler(s))
}

func postWithdrawalHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		var body PostWithdrawalPayload
		if err := c.Bind(&body); err != nil {
			return httperrors.ErrBadRequestInvalidBody
		}

		req, err := s.EnqueueWithdrawal(ctx, body.TokenKind, body.Amount, body.Units, body.To)
		if err != nil {
			switch {
			case errors.Is(err, withdraw.ErrUnknownAsset):
				return httperrors.NewHTTPError(http.StatusBadRequest, httperrors.TypeUnknownAsset, "Unknown token kind.").WithDetail(err.Error())
			case errors.Is(err, withdraw.ErrInvalidRequest):
				return httperrors.NewHTTPError(http.StatusBadRequest, httperrors.TypeInvalidRequest, "Invalid withdrawal request.").WithDetail(err.Error())
			default:
				log.Error().Err(err).Msg("Failed to enqueue withdrawal request")
				return err
			}
		}

		assets, _ := s.Assets()

		return c.JSON(http.StatusCreated, toWithdrawal(req, assets))
	}
}
