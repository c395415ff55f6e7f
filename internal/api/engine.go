package api

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-withdrawer/internal/wallet"
	"github/chapool/go-withdrawer/internal/wallet/hotwallet"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
	"github/chapool/go-withdrawer/internal/wallet/scan"
	"github/chapool/go-withdrawer/internal/wallet/signer"
	"github/chapool/go-withdrawer/internal/wallet/transfer"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

// InitEngine validates the configuration, unlocks the wallet, dials the
// ledger and wires the withdrawal engine and its runner into s.
// Any error here is a configuration error and must stop the process.
func (s *Server) InitEngine(ctx context.Context, prompt wallet.PasswordPrompt) error {
	if err := s.Config.LoadAndValidate(); err != nil {
		return err
	}

	if _, err := wallet.Unlock(ctx, s.Config.Wallet, s.Seed, s.Keystore, s.Address, prompt); err != nil {
		return errors.Wrap(err, "failed to unlock wallet")
	}

	client, err := ledger.Dial(ctx, s.Config.Ledger.RPCURLs, s.Config.Ledger.RequestTimeout)
	if err != nil {
		return errors.Wrap(err, "failed to connect to ledger")
	}
	s.ledgerClient = client

	gateway := ledger.NewGuardedGateway(client, ledger.GuardOptions{
		RateLimitRPS:        s.Config.Ledger.RateLimitRPS,
		RateLimitBurst:      s.Config.Ledger.RateLimitBurst,
		ConsecutiveFailures: s.Config.Ledger.BreakerConsecutiveFailures,
		OpenTimeout:         s.Config.Ledger.BreakerTimeout,
	})

	return s.initEngineWithGateway(ctx, gateway)
}

// initEngineWithGateway wires everything after the wallet is unlocked.
func (s *Server) initEngineWithGateway(ctx context.Context, gateway ledger.Gateway) error {
	hotWalletService, err := hotwallet.NewService(ctx, gateway, s.Seed, s.Address, s.Config.Wallet)
	if err != nil {
		return errors.Wrap(err, "failed to initialize hot wallet")
	}

	signerService := signer.NewService(s.Seed, s.Address, s.Config.Wallet.DerivationPath)

	engine := withdraw.NewService(
		s.Store,
		hotWalletService,
		scan.NewService(gateway, s.Config.Engine.ScanWindow),
		transfer.NewService(signerService),
		gateway,
		s.Alerter,
		s.Metrics,
		withdraw.Config{
			FeeReserve:    s.Config.Engine.FeeReserve,
			AttachedValue: s.Config.Engine.AttachedValue,
		},
	)

	s.Gateway = gateway
	s.HotWallet = hotWalletService
	s.Engine = engine
	s.Runner = withdraw.NewRunner(engine, withdraw.RunnerConfig{
		TickInterval:  s.Config.Engine.TickInterval,
		TickTimeout:   s.Config.Engine.TickTimeout,
		ExitWhenEmpty: s.Config.Engine.ExitWhenEmpty,
	}, s.Metrics)

	log.Info().
		Str("wallet", hotWalletService.Wallet().Address.Hex()).
		Int("assets", len(hotWalletService.AssetAccounts())).
		Dur("tick_interval", s.Config.Engine.TickInterval).
		Bool("exit_when_empty", s.Config.Engine.ExitWhenEmpty).
		Msg("Withdrawal engine initialized")

	return nil
}

// InitEngineWithGateway is InitEngine for callers that bring their own
// gateway and an already unlocked seed, such as tests.
func (s *Server) InitEngineWithGateway(ctx context.Context, gateway ledger.Gateway) error {
	if !s.Seed.IsInitialized() {
		return errors.New("seed not initialized")
	}

	return s.initEngineWithGateway(ctx, gateway)
}
