package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"reflect"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/plus3/keeneyes/ecs"
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	DX, DY float64
}

type Health struct {
	Current, Max int
}

type Lifetime struct {
	Remaining float64
}

type Frozen struct{}

// MovementSystem integrates velocities into positions in parallel.
type MovementSystem struct {
	query ecs.QueryDescriptor
}

func (s *MovementSystem) Execute(frame *ecs.UpdateFrame) {
	dt := frame.DeltaTime
	_ = ecs.ForEachParallel(frame.World, s.query, func(_ ecs.Entity, pos *Position) error {
		pos.X += dt
		pos.Y += dt
		return nil
	})
}

// DecaySystem counts lifetimes down and despawns expired entities.
type DecaySystem struct {
	query ecs.QueryDescriptor
}

func (s *DecaySystem) Execute(frame *ecs.UpdateFrame) {
	dt := frame.DeltaTime
	_ = ecs.ForEach(frame.World, s.query, func(e ecs.Entity, life *Lifetime) {
		life.Remaining -= dt
		if life.Remaining <= 0 {
			frame.Commands.Despawn(e)
		}
	})
}

// ChurnSystem keeps the population up and toggles Frozen tags to force
// archetype migrations.
type ChurnSystem struct {
	target int
	rng    *rand.Rand
}

func (s *ChurnSystem) Execute(frame *ecs.UpdateFrame) {
	w := frame.World
	for w.EntityCount() < s.target {
		if _, err := w.Spawn(randomComponents(s.rng)...); err != nil {
			logger := w.Logger()
			logger.Error().Err(err).Msg("spawn failed")
			return
		}
	}

	// Toggle the Frozen tag on a few entities per frame to keep archetype
	// migrations in the mix.
	healthy := ecs.NewQueryDescriptor(w.Registry(), typesOf(Health{}), typesOf(Frozen{}))
	toggled := 0
	ecs.ForEachEntity(w, healthy, func(e ecs.Entity) {
		if toggled < 16 && s.rng.Intn(8) == 0 {
			frame.Commands.AddComponent(e, Frozen{})
			toggled++
		}
	})
	frozen := ecs.NewQueryDescriptor(w.Registry(), typesOf(Frozen{}), nil)
	ecs.ForEachEntity(w, frozen, func(e ecs.Entity) {
		frame.Commands.RemoveComponent(e, reflect.TypeOf(Frozen{}))
	})
}

func typesOf(values ...any) []reflect.Type {
	types := make([]reflect.Type, len(values))
	for i, v := range values {
		types[i] = reflect.TypeOf(v)
	}
	return types
}

func randomComponents(rng *rand.Rand) []any {
	components := []any{
		Position{X: rng.Float64() * 100, Y: rng.Float64() * 100},
		Lifetime{Remaining: 0.5 + rng.Float64()},
	}
	if rng.Intn(2) == 0 {
		components = append(components, Velocity{DX: rng.Float64(), DY: rng.Float64()})
	}
	if rng.Intn(4) == 0 {
		components = append(components, Health{Current: 100, Max: 100})
	}
	return components
}

func main() {
	duration := flag.Duration("duration", 10*time.Second, "total duration the test should run for")
	entityCount := flag.Int("entities", 10000, "target number of live entities")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "include GC pause metrics in the report")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	logger.Info().Msg("starting ECS stress test")

	world := ecs.NewWorld(
		ecs.WithLogger(logger),
		ecs.WithEntityCapacity(*entityCount),
	)
	registry := world.Registry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Lifetime](registry)
	ecs.RegisterTag[Frozen](registry)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	scheduler := ecs.NewScheduler(world)
	scheduler.Register(&MovementSystem{
		query: ecs.FromDescription(registry, ecs.QueryDescription{
			Write: typesOf(Position{}),
			With:  typesOf(Velocity{}),
		}),
	})
	scheduler.Register(&DecaySystem{
		query: ecs.FromDescription(registry, ecs.QueryDescription{
			Write: typesOf(Lifetime{}),
		}),
	})
	scheduler.Register(&ChurnSystem{target: *entityCount, rng: rng})

	logger.Info().Int("entities", *entityCount).Msg("populating world")
	for i := 0; i < *entityCount; i++ {
		if _, err := world.Spawn(randomComponents(rng)...); err != nil {
			logger.Fatal().Err(err).Msg("initial spawn failed")
		}
	}

	report := &Report{
		Duration:       *duration,
		Entities:       *entityCount,
		GCPauseMetrics: *gcPauseMetrics,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	logger.Info().Dur("duration", *duration).Msg("running simulation")
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	startTime := time.Now()
	lastFrameTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			updateStart := time.Now()
			scheduler.Once(float64(deltaTime) / float64(time.Second))
			report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(updateStart))
			report.TotalUpdates++
		}
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)

	queries := world.Queries()
	report.FinalEntities = world.EntityCount()
	report.Archetypes = world.Archetypes().ArchetypeCount()
	report.CacheHits = queries.CacheHits()
	report.CacheMisses = queries.CacheMisses()
	report.CachedQueries = queries.CachedQueryCount()
	report.HitRate = queries.HitRate()

	logger.Info().Msg("simulation finished")

	fmt.Println("\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("failed to generate report")
	}
	fmt.Println("--- End of Report ---")
}
