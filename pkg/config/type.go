package config

type SimulatorAPIConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`

	// Annual consumption targets used when seeding a fresh install
	// with a default meter instance.
	AnnualPowerKWh float64 `toml:"annual_power_kwh"`
	AnnualGasM3    float64 `toml:"annual_gas_m3"`
	AnnualWaterM3  float64 `toml:"annual_water_m3"`

	// Default silo instance seeded on a fresh install.
	SiloCapacity       float64 `toml:"silo_capacity"`
	SiloTimeToEmptySec int     `toml:"silo_time_to_empty_sec"`

	// When false, no default instances are created on an empty registry.
	SeedDefaults bool `toml:"seed_defaults"`
}
