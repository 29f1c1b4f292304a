// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
)

// Attached describes one line of "adb devices -l".
type Attached struct {
	Serial string
	State  string

	// Properties holds the key:value pairs adb prints after the
	// state, such as model, product and transport_id.
	Properties map[string]string
}

// Ready reports whether adb can talk to the device.
func (d Attached) Ready() bool {
	return d.State == "device"
}

// Discover lists the devices adb can see.
func Discover(ctx context.Context, runner Runner, binary string) ([]Attached, error) {
	var stdout bytes.Buffer
	exitStatus, stderr, err := runner.Run(ctx, &stdout, binary, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if exitStatus != 0 {
		return nil, fmt.Errorf("listing devices: adb exit status %d (stderr: %s)", exitStatus, stderr)
	}
	return ParseDevices(stdout.String()), nil
}

// ParseDevices parses the output of "adb devices -l". Daemon startup
// chatter and the header line are ignored.
func ParseDevices(output string) []Attached {
	var devices []Attached
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		attached := Attached{
			Serial:     fields[0],
			State:      fields[1],
			Properties: make(map[string]string),
		}
		for _, field := range fields[2:] {
			key, value, found := strings.Cut(field, ":")
			if found {
				attached.Properties[key] = value
			}
		}
		devices = append(devices, attached)
	}
	return devices
}

// FirstReady returns the first device in the ready state.
func FirstReady(devices []Attached) (Attached, bool) {
	for _, attached := range devices {
		if attached.Ready() {
			return attached, true
		}
	}
	return Attached{}, false
}
