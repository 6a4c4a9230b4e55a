// Renders simulated meter readings as DSMR-style P1 telegrams so
// downstream consumers built against real meters can read the feed.
package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/sigurn/crc16"
)

// Reading is one per-second snapshot of the simulated meter.
type Reading struct {
	Timestamp     time.Time
	PowerKW       float64
	PowerTotalKWh float64
	GasM3H        float64
	GasTotalM3    float64
	WaterM3H      float64
	WaterTotalM3  float64
}

const headerLine = "/SDS5\\SMART_DEVICE_SIMULATOR"

// CRC16_ARC matches the DSMR specification
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Render produces a complete telegram including the CRC trailer.
func Render(r Reading) string {
	ts := r.Timestamp.Format("060102150405") + "W"

	var sb strings.Builder
	sb.WriteString(headerLine + "\r\n\r\n")
	fmt.Fprintf(&sb, "0-0:1.0.0(%s)\r\n", ts)
	fmt.Fprintf(&sb, "1-0:1.7.0(%06.3f*kW)\r\n", r.PowerKW)
	fmt.Fprintf(&sb, "1-0:1.8.1(%010.3f*kWh)\r\n", r.PowerTotalKWh)
	fmt.Fprintf(&sb, "0-1:24.2.3(%s)(%09.3f*m3)\r\n", ts, r.GasTotalM3)
	fmt.Fprintf(&sb, "0-2:24.2.1(%s)(%09.3f*m3)\r\n", ts, r.WaterTotalM3)
	sb.WriteString("!")

	data := sb.String()
	return data + Checksum(data) + "\r\n"
}

// Checksum computes the hex CRC over everything up to and including "!".
func Checksum(data string) string {
	return fmt.Sprintf("%04X", crc16.Checksum([]byte(data), crcTable))
}

// Validate reports whether a telegram's CRC trailer matches its body.
func Validate(telegram string) bool {
	idx := strings.LastIndex(telegram, "!")
	if idx < 0 || len(telegram) < idx+5 {
		return false
	}
	body := telegram[:idx+1]
	given := telegram[idx+1 : idx+5]
	return strings.EqualFold(given, Checksum(body))
}
