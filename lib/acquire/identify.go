// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodyworks/custody/lib/device"
)

// ErrNoDevice is returned by Identify when adb sees no usable device.
var ErrNoDevice = errors.New("no device detected")

// Identify returns the first device adb reports as ready.
func Identify(ctx context.Context, runner device.Runner, adb string) (device.Attached, error) {
	devices, err := device.Discover(ctx, runner, adb)
	if err != nil {
		return device.Attached{}, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	attached, ok := device.FirstReady(devices)
	if !ok {
		if len(devices) > 0 {
			return device.Attached{}, fmt.Errorf("%w: %s is %s", ErrNoDevice, devices[0].Serial, devices[0].State)
		}
		return device.Attached{}, ErrNoDevice
	}
	return attached, nil
}
