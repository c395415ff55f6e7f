package httperrors

import "net/http"

const (
	TypeGeneric        = "generic"
	TypeInvalidBody    = "INVALID_BODY"
	TypeUnknownAsset   = "UNKNOWN_ASSET"
	TypeInvalidRequest = "INVALID_REQUEST"
	TypeInvalidQuery   = "INVALID_QUERY"
)

var (
	ErrBadRequestInvalidBody  = NewHTTPError(http.StatusBadRequest, TypeInvalidBody, "Request body is not valid JSON.")
	ErrBadRequestInvalidQuery = NewHTTPError(http.StatusBadRequest, TypeInvalidQuery, "Query parameters are invalid.")
)
