package ecs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/keeneyes/ecs"
)

type orderedSystem struct {
	name  string
	order *[]string
}

func (s *orderedSystem) Execute(*ecs.UpdateFrame) {
	*s.order = append(*s.order, s.name)
}

func TestSchedulerRunsSystemsInRegistrationOrder(t *testing.T) {
	world := newTestWorld()
	defer world.Close()
	scheduler := ecs.NewScheduler(world)

	var order []string
	scheduler.Register(&orderedSystem{name: "movement", order: &order})
	scheduler.Register(&orderedSystem{name: "collision", order: &order})
	scheduler.Register(&orderedSystem{name: "render", order: &order})

	scheduler.Once(0.016)
	scheduler.Once(0.016)

	assert.Equal(t, []string{
		"movement", "collision", "render",
		"movement", "collision", "render",
	}, order)
}

func TestSchedulerPassesDeltaTime(t *testing.T) {
	world := newTestWorld()
	defer world.Close()
	scheduler := ecs.NewScheduler(world)

	var got float64
	scheduler.Register(systemFunc(func(frame *ecs.UpdateFrame) {
		got = frame.DeltaTime
	}))

	scheduler.Once(0.25)
	assert.Equal(t, 0.25, got)
}

func TestSchedulerStats(t *testing.T) {
	world := newTestWorld()
	defer world.Close()
	scheduler := ecs.NewScheduler(world)

	scheduler.Register(&orderedSystem{name: "a", order: &[]string{}})
	scheduler.Register(systemFunc(func(*ecs.UpdateFrame) {
		time.Sleep(time.Millisecond)
	}))

	for i := 0; i < 3; i++ {
		scheduler.Once(0.016)
	}

	stats := scheduler.GetStats()
	require.Equal(t, 2, stats.SystemCount)
	assert.Equal(t, int64(6), stats.TotalExecutions)
	require.Len(t, stats.Systems, 2)

	assert.Equal(t, "orderedSystem", stats.Systems[0].Name)
	assert.Equal(t, int64(3), stats.Systems[0].ExecutionCount)

	slow := stats.Systems[1]
	assert.Equal(t, int64(3), slow.ExecutionCount)
	assert.GreaterOrEqual(t, slow.MinDuration, time.Millisecond)
	assert.GreaterOrEqual(t, slow.MaxDuration, slow.MinDuration)
	assert.GreaterOrEqual(t, slow.AvgDuration, slow.MinDuration)
	assert.GreaterOrEqual(t, slow.TotalDuration, 3*slow.MinDuration)
}

func TestSchedulerRunStopsOnContextCancel(t *testing.T) {
	world := newTestWorld()
	defer world.Close()
	scheduler := ecs.NewScheduler(world)

	ticks := 0
	scheduler.Register(systemFunc(func(*ecs.UpdateFrame) {
		ticks++
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	scheduler.Run(ctx, time.Millisecond)

	assert.Greater(t, ticks, 0)
}
