package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/api/router"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
)

const (
	// Mnemonic is the well known BIP39 test vector; never fund it.
	//nolint:dupword
	Mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	// AssetKind is the single asset configured for test servers.
	AssetKind = "ENERGY"
)

var (
	// WalletAddress is the address Mnemonic derives at address.DefaultPath.
	WalletAddress = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	// AssetMaster is the master account of AssetKind.
	AssetMaster = common.HexToAddress("0x1000000000000000000000000000000000000001")
)

// DefaultTestConfig returns a config using a SQLite queue and one 9 decimal asset.
func DefaultTestConfig(t *testing.T) config.Server {
	t.Helper()

	cfg := config.DefaultServiceConfigFromEnv()
	cfg.Logger.PrettyPrintConsole = false
	cfg.Queue.Backend = api.QueueBackendSQL
	cfg.Database.Driver = config.DriverSQLite
	cfg.Ledger.RPCURLs = []string{"http://127.0.0.1:0"}
	cfg.Wallet.Mnemonic = Mnemonic
	cfg.Wallet.DerivationPath = address.DefaultPath
	cfg.Wallet.KeystorePath = filepath.Join(t.TempDir(), "keystore.json")
	cfg.Wallet.Assets = map[string]config.Asset{
		AssetKind: {Master: AssetMaster.Hex(), Decimals: 9},
	}
	cfg.Engine.TickInterval = 10 * time.Millisecond
	cfg.Engine.ExitWhenEmpty = true
	cfg.Alert.WebhookURL = ""

	return cfg
}

// WithTestServer runs closure against a fully wired server backed by a fresh SQLite queue.
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()

	WithTestServerConfigurable(t, DefaultTestConfig(t), closure)
}

func WithTestServerConfigurable(t *testing.T, cfg config.Server, closure func(s *api.Server)) {
	t.Helper()

	closure(NewTestServer(t, cfg))
}

// WithTestServerEngine additionally unlocks the wallet and wires the engine
// against gateway, typically a ledgertest.Simulator.
func WithTestServerEngine(t *testing.T, gateway ledger.Gateway, closure func(s *api.Server)) {
	t.Helper()

	s := NewTestServer(t, DefaultTestConfig(t))

	require.NoError(t, s.Seed.Initialize(Mnemonic, ""))
	require.NoError(t, s.InitEngineWithGateway(context.Background(), gateway))

	closure(s)
}

// NewTestServer builds a server from cfg and shuts it down on test cleanup.
func NewTestServer(t *testing.T, cfg config.Server) *api.Server {
	t.Helper()

	s, err := api.InitNewServerWithDB(cfg, NewTestSQLite(t), t)
	require.NoError(t, err, "failed to init server")

	require.NoError(t, router.Init(s), "failed to init router")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})

	return s
}

// PerformRequest serves a request through the server's echo instance.
func PerformRequest(t *testing.T, s *api.Server, method string, path string, body any, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	res := httptest.NewRecorder()
	s.Echo.ServeHTTP(res, req)

	return res
}

// ParseResponseAndValidate decodes the JSON response into v.
func ParseResponseAndValidate(t *testing.T, res *httptest.ResponseRecorder, v any) {
	t.Helper()

	require.NoError(t, json.NewDecoder(res.Body).Decode(v), "failed to decode response body")
}
