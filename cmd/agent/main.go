// Command agent runs one allocation engine as its own process, exchanging
// snapshots over a websocket relay or a NATS subject. Tasks and the agent's
// start pose come from a scenario file; multiple agent processes pointed at
// the same scenario and transport converge together.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robolibs/consens"
	"github.com/robolibs/consens/internal/sim/scenario"
	"github.com/robolibs/consens/internal/transport/natsbus"
	"github.com/robolibs/consens/internal/transport/ws"
)

func main() {
	var (
		agentID      = flag.String("id", "", "agent id (must match a scenario agent)")
		scenarioPath = flag.String("scenario", "./configs/scenarios/cross_field.yaml", "scenario yaml path")
		relayURL     = flag.String("relay", "", "websocket relay url (e.g. ws://127.0.0.1:9801/v1/ws)")
		natsURL      = flag.String("nats", "", "nats server url (e.g. nats://127.0.0.1:4222)")
		natsSubject  = flag.String("subject", "consens.fleet", "nats subject prefix")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lmicroseconds)

	if *agentID == "" {
		logger.Fatal("missing -id")
	}
	if (*relayURL == "") == (*natsURL == "") {
		logger.Fatal("exactly one of -relay or -nats required")
	}

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}

	var me *scenario.Agent
	for i := range sc.Agents {
		if sc.Agents[i].ID == *agentID {
			me = &sc.Agents[i]
			break
		}
	}
	if me == nil {
		logger.Fatalf("agent %s not in scenario %s", *agentID, sc.Name)
	}

	cfg := sc.EngineConfig(*agentID)
	cfg.Logger = logger

	var closer func()
	if *relayURL != "" {
		client, err := ws.Dial(*relayURL, *agentID)
		if err != nil {
			logger.Fatalf("relay: %v", err)
		}
		cfg.Send, cfg.Receive = client.Send, client.Receive
		closer = func() { _ = client.Close() }
	} else {
		bus, err := natsbus.Connect(*natsURL, *natsSubject, *agentID)
		if err != nil {
			logger.Fatalf("nats: %v", err)
		}
		cfg.Send, cfg.Receive = bus.Send, bus.Receive
		closer = bus.Close
	}
	defer closer()

	eng, err := consens.New(cfg)
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}
	eng.UpdatePose(me.Pose())
	eng.UpdateVelocity(me.Velocity)
	for _, t := range sc.Tasks {
		eng.AddTask(t.BuildTask())
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(sc.Dt * float64(time.Second)))
	defer ticker.Stop()

	for tick := 0; tick < sc.Ticks; tick++ {
		select {
		case <-stop:
			logger.Printf("interrupted")
			return
		case <-ticker.C:
		}
		eng.Tick(sc.Dt)
		if eng.HasConverged() {
			logger.Printf("converged at tick %d", tick+1)
			break
		}
	}

	stats := eng.Statistics()
	fmt.Printf("%s: iterations=%d bundle=%d score=%.3f converged=%v path=%v\n",
		*agentID, stats.IterationCount, stats.BundleSize, stats.TotalPathScore, stats.Converged, eng.Path())
}
