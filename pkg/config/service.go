package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/smart_device_simulator/pkg/pathing"
)

var ActiveSimulatorAPIConfig *SimulatorAPIConfig

func LoadSimulatorAPIConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "simulator_api.toml")

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &SimulatorAPIConfig{
			ListenAddress:      "0.0.0.0",
			ListenPort:         9041,
			AnnualPowerKWh:     3500,
			AnnualGasM3:        1500,
			AnnualWaterM3:      100,
			SiloCapacity:       100,
			SiloTimeToEmptySec: 60,
			SeedDefaults:       true,
		}
		// Create file
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveSimulatorAPIConfig = cfg
		return nil
	}

	// Load existing config
	var config SimulatorAPIConfig
	_, err := toml.DecodeFile(configPath, &config)
	if err != nil {
		return err
	}
	ActiveSimulatorAPIConfig = &config
	return nil
}
