package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/simulator"
)

var simOpts struct {
	broker   string
	interval time.Duration
	steps    int
	jitter   float64
	vehicles []string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish simulated location reports for the configured vehicles",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.broker, "broker", "", "MQTT broker URL, defaults to mqtt.broker")
	f.DurationVar(&simOpts.interval, "interval", 5*time.Second, "report interval")
	f.IntVar(&simOpts.steps, "steps", 10, "reports between two waypoints")
	f.Float64Var(&simOpts.jitter, "jitter", 0.0001, "random offset in degrees")
	f.StringSliceVar(&simOpts.vehicles, "vehicle", nil, "vehicle ids, defaults to the configured fleet")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Setup(cfg.Logging); err != nil {
		return err
	}
	sim := simulator.Config{
		Broker:      simOpts.broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Interval:    simOpts.interval,
		Steps:       simOpts.steps,
		Jitter:      simOpts.jitter,
	}
	if sim.Broker == "" {
		sim.Broker = cfg.MQTT.Broker
	}
	sim.SetDefaults()
	if err := sim.Validate(); err != nil {
		return err
	}
	ids := simOpts.vehicles
	if len(ids) == 0 {
		for _, v := range cfg.Fleet.Vehicles {
			ids = append(ids, v.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no vehicles to simulate")
	}

	pub, err := simulator.NewMQTTPublisher(sim.Broker, cfg.MQTT.ClientID+"-sim", sim.TopicPrefix)
	if err != nil {
		return fmt.Errorf("connect %s: %w", sim.Broker, err)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.New("simulator")
	log.Infof("simulating %d vehicles on %s", len(ids), sim.Broker)
	vehicles := simulator.GenerateFleet(sim, ids, rand.New(rand.NewSource(time.Now().UnixNano())))
	simulator.Run(ctx, sim, vehicles, pub, log)
	return nil
}
