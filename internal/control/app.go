package control

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/vietddude/escalator/internal/core/config"
	"github.com/vietddude/escalator/internal/core/domain"
	"github.com/vietddude/escalator/internal/core/worker"
	"github.com/vietddude/escalator/internal/escalation"
	"github.com/vietddude/escalator/internal/health"
	"github.com/vietddude/escalator/internal/infra/chain/evm"
	redisclient "github.com/vietddude/escalator/internal/infra/redis"
	"github.com/vietddude/escalator/internal/infra/rpc/provider"
	"github.com/vietddude/escalator/internal/infra/rpc/routing"
	"github.com/vietddude/escalator/internal/infra/storage/memory"
)

// App wires the provider, chain adapter, submitter and optional servers.
type App struct {
	cfg          *config.AppConfig
	provider     *provider.EthProvider
	adapter      *evm.EVMAdapter
	submitter    *escalation.Submitter
	redisClient  *redisclient.Client
	pruner       *worker.Pruner
	cancel       context.CancelFunc
	healthServer *health.Server
	log          *slog.Logger
}

// NewApp builds every dependency from cfg. It does not start servers.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := slog.Default().With("component", "control")

	chainID := new(big.Int).SetUint64(cfg.Chain.ChainID)
	signer, err := evm.NewSigner(cfg.Chain.PrivateKey, chainID)
	if err != nil {
		return nil, err
	}

	p, err := provider.NewEthProvider(ctx, cfg.Chain.Name, cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
	if err != nil {
		return nil, err
	}

	retry := BackoffConfig(cfg)
	adapter := evm.NewEVMAdapter(p, signer, retry)

	opts := []escalation.Option{}
	var redisClient *redisclient.Client
	var pruner *worker.Pruner
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		opts = append(opts, escalation.WithLocker(redisClient))
		log.Info("Using Redis sequence locks")
	} else {
		locker := memory.NewLocker()
		pruner = worker.NewPruner("sequence-locks", locker, cfg.Escalation.LockTTL)
		opts = append(opts, escalation.WithLocker(locker))
	}

	app := &App{
		cfg:         cfg,
		provider:    p,
		adapter:     adapter,
		submitter:   escalation.New(adapter, EscalationConfig(cfg), opts...),
		redisClient: redisClient,
		pruner:      pruner,
		log:         log,
	}
	if cfg.Metrics.Addr != "" {
		app.healthServer = health.NewServer(cfg.Metrics.Addr, p)
	}

	log.Info("Escalator initialized",
		"chain", domain.ChainName(cfg.Chain.ChainID),
		"provider", cfg.Chain.Name,
		"sender", signer.Address().Hex(),
	)
	return app, nil
}

// EscalationConfig maps the file configuration onto the submitter's.
func EscalationConfig(cfg *config.AppConfig) escalation.Config {
	out := escalation.DefaultConfig()
	if cfg.Escalation.MaxAttempts != nil {
		out.MaxAttempts = *cfg.Escalation.MaxAttempts
	}
	if cfg.Escalation.WaitWindow > 0 {
		out.WaitWindow = cfg.Escalation.WaitWindow
	}
	if cfg.Escalation.BumpPercent > 0 {
		out.BumpPercent = cfg.Escalation.BumpPercent
	}
	if cfg.Escalation.DefaultTipWei > 0 {
		out.DefaultPriorityFee = new(big.Int).SetUint64(cfg.Escalation.DefaultTipWei)
	}
	if cfg.Escalation.LockTTL > 0 {
		out.LockTTL = cfg.Escalation.LockTTL
	}
	out.SkipResubmitWhilePending = cfg.Escalation.SkipWhilePending
	out.Retry = BackoffConfig(cfg)
	return out
}

// BackoffConfig maps the retry section onto the retrier's parameters.
func BackoffConfig(cfg *config.AppConfig) routing.BackoffConfig {
	out := routing.DefaultBackoffConfig
	if cfg.Retry.MaxRetries != nil {
		out.MaxRetries = *cfg.Retry.MaxRetries
	}
	if cfg.Retry.InitialDelay > 0 {
		out.InitialDelay = cfg.Retry.InitialDelay
	}
	if cfg.Retry.Multiplier > 0 {
		out.BackoffMultiple = cfg.Retry.Multiplier
	}
	return out
}

// Start checks the endpoint's chain id and starts the health server if configured.
func (a *App) Start(ctx context.Context) error {
	remote, err := a.adapter.RemoteChainID(ctx)
	if err != nil {
		a.log.Warn("Failed to read chain id from node", "error", err)
	} else if remote.Uint64() != a.cfg.Chain.ChainID {
		return fmt.Errorf("chain id mismatch: config %d, node %s", a.cfg.Chain.ChainID, remote)
	}

	if a.pruner != nil {
		var bgCtx context.Context
		bgCtx, a.cancel = context.WithCancel(context.Background())
		go a.pruner.Start(bgCtx)
	}

	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil {
				a.log.Error("Health server failed", "error", err)
			}
		}()
		a.log.Info("Health server started", "addr", a.cfg.Metrics.Addr)
	}
	return nil
}

// Stop closes the servers and connections.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	_ = a.provider.Close()

	if a.healthServer != nil {
		return a.healthServer.Stop(ctx)
	}
	return nil
}

func (a *App) Submitter() *escalation.Submitter { return a.submitter }

func (a *App) Adapter() *evm.EVMAdapter { return a.adapter }

func (a *App) Provider() *provider.EthProvider { return a.provider }
