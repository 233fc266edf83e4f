// Package wokwi generates a Wokwi simulator project (wokwi.toml and
// diagram.json) for a board setup.
package wokwi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"picodemo/setups"
	"picodemo/types"
)

// Project is wokwi.toml.
type Project struct {
	Wokwi Section `toml:"wokwi"`
}

type Section struct {
	Version  int    `toml:"version"`
	Firmware string `toml:"firmware"`
	ELF      string `toml:"elf"`
}

// Diagram is diagram.json.
type Diagram struct {
	Version      int            `json:"version"`
	Author       string         `json:"author"`
	Editor       string         `json:"editor"`
	Parts        []Part         `json:"parts"`
	Connections  [][]any        `json:"connections"`
	Dependencies map[string]any `json:"dependencies"`
}

type Part struct {
	Type  string            `json:"type"`
	ID    string            `json:"id"`
	Top   float64           `json:"top"`
	Left  float64           `json:"left"`
	Rot   int               `json:"rotate,omitempty"`
	Attrs map[string]string `json:"attrs"`
}

const boardID = "pico"

func NewProject(firmware, elf string) Project {
	return Project{Wokwi: Section{Version: 1, Firmware: firmware, ELF: elf}}
}

// Build lays out the Pico and one part per display or console device of
// the setup, wired to the pins in its resource plan.
func Build(s setups.Setup) (Diagram, error) {
	d := Diagram{
		Version:      1,
		Author:       "picodemo",
		Editor:       "wokwi",
		Parts:        []Part{{Type: "wokwi-pi-pico", ID: boardID, Attrs: map[string]string{}}},
		Dependencies: map[string]any{},
	}
	for _, dev := range s.HAL.Devices {
		switch dev.Type {
		case "ssd1306":
			p, ok := dev.Params.(types.OLEDParams)
			if !ok {
				return d, fmt.Errorf("wokwi: %s: unexpected params %T", dev.ID, dev.Params)
			}
			bus, ok := s.Plan.FindI2C(p.Bus)
			if !ok {
				return d, fmt.Errorf("wokwi: %s: bus %q not planned", dev.ID, p.Bus)
			}
			d.Parts = append(d.Parts, Part{Type: "board-ssd1306", ID: dev.ID, Top: -120, Left: 120, Attrs: map[string]string{"i2cAddress": hexAddr(p.Addr)}})
			d.wire(dev.ID, "SDA", gp(bus.SDA), "blue")
			d.wire(dev.ID, "SCL", gp(bus.SCL), "green")
			d.wire(dev.ID, "VCC", "3V3", "red")
			d.wire(dev.ID, "GND", "GND.8", "black")
		case "max7219":
			p, ok := dev.Params.(types.MatrixParams)
			if !ok {
				return d, fmt.Errorf("wokwi: %s: unexpected params %T", dev.ID, dev.Params)
			}
			bus, ok := s.Plan.FindSPI(p.Bus)
			if !ok {
				return d, fmt.Errorf("wokwi: %s: bus %q not planned", dev.ID, p.Bus)
			}
			chain := p.Modules
			if chain == 0 {
				chain = 4
			}
			d.Parts = append(d.Parts, Part{Type: "wokwi-max7219-matrix", ID: dev.ID, Top: -240, Left: 60, Attrs: map[string]string{"chain": strconv.Itoa(chain)}})
			d.wire(dev.ID, "DIN", gp(bus.SDO), "orange")
			d.wire(dev.ID, "CLK", gp(bus.SCK), "purple")
			d.wire(dev.ID, "CS", gp(p.CS), "gold")
			d.wire(dev.ID, "V+", "VBUS", "red")
			d.wire(dev.ID, "GND", "GND.3", "black")
		case "serial_console":
			p, ok := dev.Params.(types.SerialParams)
			if !ok {
				return d, fmt.Errorf("wokwi: %s: unexpected params %T", dev.ID, dev.Params)
			}
			u, ok := s.Plan.FindUART(p.Bus)
			if !ok {
				return d, fmt.Errorf("wokwi: %s: bus %q not planned", dev.ID, p.Bus)
			}
			d.Connections = append(d.Connections,
				[]any{boardID + ":" + gp(u.TX), "$serialMonitor:RX", "", []any{}},
				[]any{boardID + ":" + gp(u.RX), "$serialMonitor:TX", "", []any{}},
			)
		}
	}
	return d, nil
}

func (d *Diagram) wire(part, pin, boardPin, color string) {
	d.Connections = append(d.Connections, []any{part + ":" + pin, boardID + ":" + boardPin, color, []any{}})
}

func gp(n int) string { return "GP" + strconv.Itoa(n) }

func hexAddr(a uint16) string {
	if a == 0 {
		a = 0x3C
	}
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Write creates wokwi.toml and diagram.json in dir.
func Write(dir string, p Project, d Diagram) error {
	t, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("wokwi: encode toml: %w", err)
	}
	j, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("wokwi: encode diagram: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "wokwi.toml"), t, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "diagram.json"), append(j, '\n'), 0o644)
}
