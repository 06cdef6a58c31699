package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// humanReadableState is the JSON-serializable snapshot of CPU control state.
type humanReadableState struct {
	A      byte   `json:"a"`
	B      byte   `json:"b"`
	C      byte   `json:"c"`
	D      byte   `json:"d"`
	E      byte   `json:"e"`
	H      byte   `json:"h"`
	L      byte   `json:"l"`
	PC     uint16 `json:"pc"`
	SP     uint16 `json:"sp"`
	Flags  byte   `json:"flags"`
	Halted bool   `json:"halted"`
	Steps  int    `json:"steps"`

	// Ports whose devices saved a device_<port>.bin entry.
	StatefulPorts []int `json:"stateful_ports,omitempty"`
}

func deviceEntry(port int) string { return fmt.Sprintf("device_%d.bin", port) }

// HibernateToBytes serialises the machine into an in-memory ZIP archive
// holding cpu_state.json, memory.bin and a device_<port>.bin for every
// mounted StatefulDevice.
func (c *CPU) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := humanReadableState{
		A:      c.Regs[RegA],
		B:      c.Regs[RegB],
		C:      c.Regs[RegC],
		D:      c.Regs[RegD],
		E:      c.Regs[RegE],
		H:      c.Regs[RegH],
		L:      c.Regs[RegL],
		PC:     c.PC,
		SP:     c.SP,
		Flags:  c.Flags(),
		Halted: c.Halted,
		Steps:  c.Steps,
	}
	for port, d := range c.Devices {
		if _, ok := d.(StatefulDevice); ok {
			state.StatefulPorts = append(state.StatefulPorts, port)
		}
	}
	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal cpu_state: %w", err)
	}
	if err := writeZipEntry(zw, "cpu_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "memory.bin", c.Memory[:]); err != nil {
		return nil, err
	}
	for _, port := range state.StatefulPorts {
		data := c.Devices[port].(StatefulDevice).SaveState()
		if err := writeZipEntry(zw, deviceEntry(port), data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes loads an archive produced by HibernateToBytes. Devices
// are not recreated: every port the archive saved must already have a
// StatefulDevice mounted, which then loads its device_<port>.bin. Input
// and Output are left as they are.
func (c *CPU) RestoreFromBytes(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	fileMap := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "cpu_state.json")
	if err != nil {
		return err
	}
	var state humanReadableState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal cpu_state: %w", err)
	}

	mem, err := readZipEntry(fileMap, "memory.bin")
	if err != nil {
		return err
	}
	if len(mem) != len(c.Memory) {
		return fmt.Errorf("memory.bin holds %d bytes, want %d", len(mem), len(c.Memory))
	}

	devState := make(map[int][]byte, len(state.StatefulPorts))
	for _, port := range state.StatefulPorts {
		if port < 0 || port >= len(c.Devices) {
			return fmt.Errorf("device port %d out of range", port)
		}
		if _, ok := c.Devices[port].(StatefulDevice); !ok {
			return fmt.Errorf("archive holds state for port %d but no stateful device is mounted there", port)
		}
		data, err := readZipEntry(fileMap, deviceEntry(port))
		if err != nil {
			return err
		}
		devState[port] = data
	}
	for port, data := range devState {
		if err := c.Devices[port].(StatefulDevice).LoadState(data); err != nil {
			return fmt.Errorf("load device %d state: %w", port, err)
		}
	}

	copy(c.Memory[:], mem)
	c.Regs[RegA] = state.A
	c.Regs[RegB] = state.B
	c.Regs[RegC] = state.C
	c.Regs[RegD] = state.D
	c.Regs[RegE] = state.E
	c.Regs[RegH] = state.H
	c.Regs[RegL] = state.L
	c.PC = state.PC
	c.SP = state.SP
	c.setFlags(state.Flags)
	c.Halted = state.Halted
	c.Steps = state.Steps
	return nil
}

// HibernateToFile writes the hibernation archive to the given file path.
func (c *CPU) HibernateToFile(path string) error {
	data, err := c.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a hibernation archive from the given file path and
// restores the machine state.
func (c *CPU) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
