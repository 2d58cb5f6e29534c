package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/audit"
	"main/internal/broker"
	"main/internal/bus"
	"main/internal/journal"
	"main/internal/killswitch"
	"main/internal/og"
	"main/internal/ops"
	"main/internal/order"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/strategy"
	"main/pkg/conn"
)

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...interface{})  {}
func (emptyLogger) Debugf(string, ...interface{}) {}
func (emptyLogger) Errorf(string, ...interface{}) {}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	journalDir := flag.String("journal-dir", "", "Execution journal directory (overrides config)")
	paper := flag.Bool("paper", false, "Generate synthetic ticks instead of connecting to the feed")
	pyroscopeAddr := flag.String("pyroscope-addr", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *journalDir != "" {
		loaded.JournalDir = *journalDir
	}

	if err := run(ctx, loaded, *paper); err != nil {
		log.Fatalf("trader failed: %v", err)
	}
}

func run(ctx context.Context, loaded ops.Loaded, paper bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	journalStore, err := journal.OpenBadger(loaded.JournalDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = journalStore.Close()
	}()

	report, err := journal.Recover(journalStore)
	if err != nil {
		return err
	}
	logs.Infof("journal recovery: flagged=%d already_flagged=%d", len(report.Flagged), len(report.AlreadyFlagged))

	var (
		recorder audit.Recorder = audit.Nop{}
		repo     *store.Repository
	)
	if loaded.Postgres != nil {
		pg, err := conn.New(*loaded.Postgres)
		if err != nil {
			return err
		}
		defer func() {
			_ = pg.Close()
		}()
		recorder, err = audit.NewGormRecorder(pg.DB())
		if err != nil {
			return err
		}
		repo, err = store.NewRepository(pg.DB())
		if err != nil {
			return err
		}
	}

	sim := broker.NewSim()
	queue := order.NewQueue()
	router := order.NewRouter(queue, order.NewSessionGuard(), loaded.Registry, recorder)

	opts := strategy.Options{
		Registry: loaded.Registry,
		Router:   router,
		Journal:  journalStore,
		Recorder: recorder,
	}
	if repo != nil {
		opts.Statuses = repo
	}
	engine := strategy.NewEngine(opts)
	switchSvc := killswitch.NewService(engine, router, sim, recorder)

	if repo != nil {
		links, err := repo.ListPositionLinks()
		if err != nil {
			return err
		}
		engine.PopulatePositionIndex(toEngineLinks(links))
		logs.Infof("position index rebuilt: links=%d", len(links))
	}

	if err := deployStrategies(engine, repo, loaded.Strategies); err != nil {
		return err
	}

	ticks := bus.NewQueue(4096)
	gateway := og.NewGateway(queue, sim, journalStore)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ticks.Run(ctx, engine.OnTick)
	}()
	go func() {
		defer wg.Done()
		gateway.Run(ctx)
	}()

	if paper || loaded.FeedURL == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paperFeed(ctx, loaded.Registry, ticks)
		}()
	} else {
		stream := broker.NewStream(broker.StreamConfig{URL: loaded.FeedURL}, loaded.Registry, ticks)
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream.Run(ctx)
		}()
	}

	go watchKillSignal(ctx, switchSvc)

	select {
	case <-ctx.Done():
	case <-sys.Shutdown():
	}
	logs.Info("shutting down")
	logs.Infof("paused %d strategies for shutdown", engine.PauseAll())
	cancel()
	ticks.Close()
	wg.Wait()
	return nil
}

func deployStrategies(engine *strategy.Engine, repo *store.Repository, specs []ops.StrategySpec) error {
	for _, spec := range specs {
		id, err := engine.Deploy(spec.Type, spec.Name, spec.Config, spec.AutoArm)
		if err != nil {
			return err
		}
		logs.Infof("deployed strategy %s (%s) id=%s", spec.Name, spec.Type, id)
		if repo == nil {
			continue
		}
		if err := repo.SaveStrategy(store.StrategyRecord{
			ID:     id,
			Name:   spec.Name,
			Type:   spec.Type.String(),
			Status: strategy.StatusCreated.String(),
		}); err != nil {
			logs.Warnf("persist strategy %s failed: %v", id, err)
		}
	}
	return nil
}

// watchKillSignal maps SIGUSR1 to kill-switch activation so an
// operator can halt trading without an admin surface.
func watchKillSignal(ctx context.Context, svc *killswitch.Service) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			result := svc.Activate(context.Background(), "operator signal")
			logs.Warnf("kill switch: success=%v positions_closed=%d reason=%s",
				result.Success, result.PositionsClosed, result.Reason)
		}
	}
}

// paperFeed publishes a slow random walk for every instrument.
func paperFeed(ctx context.Context, reg *schema.Registry, queue *bus.Queue) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	prices := make(map[schema.InstrumentToken]schema.Price, reg.InstrumentCount())
	for i := 0; i < reg.InstrumentCount(); i++ {
		inst, _ := reg.InstrumentAt(i)
		prices[inst.Token] = basePrice(inst.Scale.PriceScale)
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < reg.InstrumentCount(); i++ {
				inst, _ := reg.InstrumentAt(i)
				last := prices[inst.Token]
				drift := schema.Price(rng.Int63n(2*driftStep(inst.Scale.PriceScale)+1)) - schema.Price(driftStep(inst.Scale.PriceScale))
				next := last + drift
				if next <= 0 {
					next = last
				}
				prices[inst.Token] = next
				now := time.Now().UTC().UnixNano()
				if err := queue.TryPublish(schema.Tick{
					Token:     inst.Token,
					LastPrice: next,
					TsEvent:   now,
					TsRecv:    now,
				}); err != nil {
					return
				}
			}
		}
	}
}

func basePrice(scale schema.Scale) schema.Price {
	p := schema.Price(100)
	for s := schema.Scale(0); s < scale; s++ {
		p *= 10
	}
	return p
}

func driftStep(scale schema.Scale) int64 {
	step := int64(1)
	for s := schema.Scale(0); s < scale; s++ {
		step *= 10
	}
	return step
}

func toEngineLinks(links []store.PositionLink) []strategy.PositionLink {
	out := make([]strategy.PositionLink, 0, len(links))
	for _, l := range links {
		out = append(out, strategy.PositionLink{
			PositionID: l.PositionID,
			StrategyID: l.StrategyID,
		})
	}
	return out
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded()
	}
	return ops.Load(path)
}

// defaultLoaded wires a single paper short straddle so the binary is
// runnable with no config file.
func defaultLoaded() (ops.Loaded, error) {
	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("SIM")
	if err != nil {
		return ops.Loaded{}, err
	}
	scale := schema.ScaleSpec{PriceScale: 2, QuantityScale: 0}
	instruments := []struct {
		token  uint32
		symbol string
	}{
		{256265, "NIFTY"},
		{10100, "NIFTY24SEP24000CE"},
		{10101, "NIFTY24SEP24000PE"},
	}
	for _, inst := range instruments {
		if err := reg.AddInstrument(schema.InstrumentToken(inst.token), inst.symbol, venueID, scale); err != nil {
			return ops.Loaded{}, err
		}
	}
	return ops.Loaded{
		Registry:   reg,
		JournalDir: "testdata/journal",
		Strategies: []ops.StrategySpec{
			{
				Type:    strategy.TypeShortStraddle,
				Name:    "paper-straddle",
				AutoArm: true,
				Config: strategy.Config{
					Underlying: 256265,
					Legs: []strategy.LegSpec{
						{Token: 10100, Symbol: "NIFTY24SEP24000CE", Venue: "SIM", Side: schema.OrderSideSell},
						{Token: 10101, Symbol: "NIFTY24SEP24000PE", Venue: "SIM", Side: schema.OrderSideSell},
					},
					QtyPerLeg:         schema.Quantity(50),
					StopBps:           150,
					AdjustCooldownSec: 60,
					Product:           schema.ProductIntraday,
				},
			},
		},
	}, nil
}
