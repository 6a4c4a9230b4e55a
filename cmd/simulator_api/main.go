// Simulator API hosts the simulated devices: it restores persisted
// instances on startup, exposes them over HTTP and broadcasts live
// readings to websocket subscribers every second.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NotCoffee418/smart_device_simulator/pkg/config"
	"github.com/NotCoffee418/smart_device_simulator/pkg/consumption"
	"github.com/NotCoffee418/smart_device_simulator/pkg/lifecycle"
	"github.com/NotCoffee418/smart_device_simulator/pkg/pathing"
	"github.com/NotCoffee418/smart_device_simulator/pkg/recordstore"
	"github.com/NotCoffee418/smart_device_simulator/pkg/registry"
	"github.com/NotCoffee418/smart_device_simulator/pkg/silo"
	"github.com/NotCoffee418/smart_device_simulator/pkg/telegram"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "simulator_api",
	Short: "Synthetic smart meter and silo sensor simulator",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulator API",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		runServer()
	},
}

func init() {
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log verbosity (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// ws clients for broadcasting live readings
var (
	wsClients      = make(map[*websocket.Conn]bool)
	wsClientsMutex sync.RWMutex
)

var reg *registry.Registry

func runServer() {
	// Load config
	if err := config.LoadSimulatorAPIConfig(); err != nil {
		logrus.Fatalf("Failed to load simulator API config: %v", err)
	}
	cfg := config.ActiveSimulatorAPIConfig

	// Open the record store; fall back to in-memory so the simulated
	// devices stay useful even without durability.
	var store recordstore.Store
	store, err := recordstore.OpenSQLite(pathing.GetRecordDbPath())
	if err != nil {
		logrus.Errorf("Failed to open record store, running without durable persistence: %v", err)
		store = recordstore.NewMemoryStore()
	}
	defer store.Close()

	// Registry with the known engine classes
	reg = registry.New()
	reg.RegisterFactory(consumption.ClassName, func(args json.RawMessage) (registry.Instance, error) {
		return consumption.FromArgs(args)
	})
	reg.RegisterFactory(silo.ClassName, func(args json.RawMessage) (registry.Instance, error) {
		return silo.FromArgs(args)
	})

	// Persistence must subscribe before restore so recreated instances
	// get their update hooks attached.
	persist := lifecycle.New(store, reg)
	reg.Subscribe(persist)

	restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := persist.Restore(restoreCtx); err != nil {
		logrus.Errorf("Restore failed, continuing with empty registry: %v", err)
	}
	cancel()

	if reg.Len() == 0 && cfg.SeedDefaults {
		seedDefaults(cfg)
	}

	go broadcastLoop()

	// Setup HTTP handlers
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]string{
			"message": "Smart Device Simulator API",
			"status":  "running",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	http.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(buildSnapshot())
	})

	http.HandleFunc("/telegram", handleTelegram)
	http.HandleFunc("/instances", handleInstances)
	http.HandleFunc("/instances/", handleInstanceByID)
	http.HandleFunc("/ws", handleWebSocket)

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	server := &http.Server{Addr: listener}

	// Stop engines cleanly on shutdown; records stay for the next restore.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		logrus.Info("Interrupt received, shutting down...")
		reg.StopAll()
		server.Close()
	}()

	logrus.Infof("Starting Smart Device Simulator API on %s", listener)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatal(err)
	}
}

// seedDefaults creates one meter and one silo on a fresh install.
func seedDefaults(cfg *config.SimulatorAPIConfig) {
	meterArgs, _ := json.Marshal([]consumption.Params{{
		AnnualPowerKWh: cfg.AnnualPowerKWh,
		AnnualGasM3:    cfg.AnnualGasM3,
		AnnualWaterM3:  cfg.AnnualWaterM3,
	}})
	if id, err := reg.Create(consumption.ClassName, meterArgs); err != nil {
		logrus.Errorf("Failed to seed default meter: %v", err)
	} else {
		logrus.Infof("Seeded default meter instance %s", id)
	}

	siloArgs, _ := json.Marshal([]silo.Params{{
		Capacity:       cfg.SiloCapacity,
		TimeToEmptySec: float64(cfg.SiloTimeToEmptySec),
	}})
	if id, err := reg.Create(silo.ClassName, siloArgs); err != nil {
		logrus.Errorf("Failed to seed default silo: %v", err)
	} else {
		logrus.Infof("Seeded default silo instance %s", id)
	}
}

type MeterReading struct {
	PowerKW       float64 `json:"power_kw"`
	PowerTotalKWh float64 `json:"power_total_kwh"`
	GasM3H        float64 `json:"gas_m3h"`
	GasTotalM3    float64 `json:"gas_total_m3"`
	WaterM3H      float64 `json:"water_m3h"`
	WaterTotalM3  float64 `json:"water_total_m3"`
}

type SiloReading struct {
	Level float64 `json:"level"`
	Mode  string  `json:"mode"`
}

type InstanceReading struct {
	ID        string        `json:"id"`
	ClassName string        `json:"class_name"`
	Meter     *MeterReading `json:"meter,omitempty"`
	Silo      *SiloReading  `json:"silo,omitempty"`
}

type LiveSnapshot struct {
	Timestamp string            `json:"timestamp"`
	Instances []InstanceReading `json:"instances"`
}

func buildSnapshot() *LiveSnapshot {
	snapshot := &LiveSnapshot{
		Timestamp: time.Now().Format(time.RFC3339),
		Instances: []InstanceReading{},
	}
	for _, entry := range reg.List() {
		reading := InstanceReading{ID: entry.ID, ClassName: entry.ClassName}
		switch inst := entry.Instance.(type) {
		case *consumption.Engine:
			reading.Meter = readMeter(inst)
		case *silo.Engine:
			reading.Silo = &SiloReading{
				Level: inst.GetLevel(),
				Mode:  inst.Mode().String(),
			}
		}
		snapshot.Instances = append(snapshot.Instances, reading)
	}
	return snapshot
}

func readMeter(engine *consumption.Engine) *MeterReading {
	reading := &MeterReading{}
	reading.PowerKW, _ = engine.GetLiveValue(consumption.ChannelPower)
	reading.PowerTotalKWh, _ = engine.GetAggregatedValue(consumption.ChannelPower)
	reading.GasM3H, _ = engine.GetLiveValue(consumption.ChannelGas)
	reading.GasTotalM3, _ = engine.GetAggregatedValue(consumption.ChannelGas)
	reading.WaterM3H, _ = engine.GetLiveValue(consumption.ChannelWater)
	reading.WaterTotalM3, _ = engine.GetAggregatedValue(consumption.ChannelWater)
	return reading
}

// broadcastLoop pushes a snapshot to all websocket clients every second.
func broadcastLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		data, err := json.Marshal(buildSnapshot())
		if err != nil {
			logrus.Errorf("Error marshaling snapshot: %v", err)
			continue
		}
		broadcastToWebSockets(data)
	}
}

func broadcastToWebSockets(data []byte) {
	wsClientsMutex.RLock()
	clients := make([]*websocket.Conn, 0, len(wsClients))
	for client := range wsClients {
		clients = append(clients, client)
	}
	wsClientsMutex.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			removeWebSocketClient(client)
		}
	}
}

func addWebSocketClient(conn *websocket.Conn) {
	wsClientsMutex.Lock()
	wsClients[conn] = true
	wsClientsMutex.Unlock()
}

func removeWebSocketClient(conn *websocket.Conn) {
	wsClientsMutex.Lock()
	delete(wsClients, conn)
	wsClientsMutex.Unlock()
	conn.Close()
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	addWebSocketClient(conn)

	// Send current snapshot immediately
	if data, err := json.Marshal(buildSnapshot()); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			removeWebSocketClient(conn)
			break
		}
	}
}

// handleTelegram renders the first meter instance as a DSMR-style frame.
func handleTelegram(w http.ResponseWriter, r *http.Request) {
	for _, entry := range reg.List() {
		engine, ok := entry.Instance.(*consumption.Engine)
		if !ok {
			continue
		}
		meter := readMeter(engine)
		frame := telegram.Render(telegram.Reading{
			Timestamp:     time.Now(),
			PowerKW:       meter.PowerKW,
			PowerTotalKWh: meter.PowerTotalKWh,
			GasM3H:        meter.GasM3H,
			GasTotalM3:    meter.GasTotalM3,
			WaterM3H:      meter.WaterM3H,
			WaterTotalM3:  meter.WaterTotalM3,
		})
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, frame)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "No meter instances available",
	})
}

type createInstanceRequest struct {
	ClassName string          `json:"class_name"`
	Args      json.RawMessage `json:"args"`
}

func handleInstances(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		type instanceInfo struct {
			ID        string          `json:"id"`
			ClassName string          `json:"class_name"`
			Args      json.RawMessage `json:"args"`
		}
		infos := []instanceInfo{}
		for _, entry := range reg.List() {
			infos = append(infos, instanceInfo{
				ID:        entry.ID,
				ClassName: entry.ClassName,
				Args:      entry.Args,
			})
		}
		json.NewEncoder(w).Encode(infos)

	case http.MethodPost:
		var req createInstanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		id, err := reg.Create(req.ClassName, req.Args)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": id})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func handleInstanceByID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := strings.TrimPrefix(r.URL.Path, "/instances/")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing instance id"})
		return
	}

	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := reg.Delete(id); err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
