package pathing

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Ensure directories exist on startup
func init() {
	// Directories that must exist:
	dirs := []string{
		GetDataDir(),
	}

	// Create all directories
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				logrus.Fatal(err)
			}
		}
	}
}

func GetRecordDbPath() string {
	// Join path
	return filepath.Join(GetDataDir(), "sds-records.db")
}

// Overridable with SDS_DATA_DIR for development and tests.
func GetDataDir() string {
	if dir := os.Getenv("SDS_DATA_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/smart_device_simulator"
}

func GetConfigDir() string {
	if dir := os.Getenv("SDS_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/smart_device_simulator"
}
