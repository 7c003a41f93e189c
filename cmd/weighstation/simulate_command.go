package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"weighstation/internal/config"
	"weighstation/internal/scale"
	"weighstation/internal/serialport"
)

func newSimulateCommand() *cobra.Command {
	var device string
	var baud int
	var interval time.Duration
	var settle int

	cmd := &cobra.Command{
		Use:   "simulate WEIGHT...",
		Short: "Emit indicator records for the given weights",
		Long: `Write records in the indicator's wire format, to stdout or to a serial
device (for example one end of a null-modem pair). Each weight is preceded by
--settle unstable records carrying the same value.`,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weights := make([]int, 0, len(args))
			for _, arg := range args {
				w, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid weight %q", arg)
				}
				weights = append(weights, w)
			}

			var out io.Writer = cmd.OutOrStdout()
			if device != "" {
				path, err := config.ExpandPath(device)
				if err != nil {
					return err
				}
				serialCfg := serialport.DefaultConfig(path)
				serialCfg.BaudRate = baud
				port, err := serialport.Open(serialCfg)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				defer port.Close()
				out = port
			}
			return simulate(cmd, out, weights, settle, interval)
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "Serial device to write to instead of stdout")
	cmd.Flags().IntVar(&baud, "baud", 9600, "Baud rate when --device is set")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between records")
	cmd.Flags().IntVar(&settle, "settle", 1, "Unstable records emitted before each stable one")
	return cmd
}

func simulate(cmd *cobra.Command, out io.Writer, weights []int, settle int, interval time.Duration) error {
	emit := func(stable bool, weight int) error {
		record, err := scale.Encode(stable, weight)
		if err != nil {
			return err
		}
		if _, err := out.Write(record); err != nil {
			return err
		}
		if interval <= 0 {
			return nil
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(interval):
			return nil
		}
	}
	for _, w := range weights {
		for i := 0; i < settle; i++ {
			if err := emit(false, w); err != nil {
				return err
			}
		}
		if err := emit(true, w); err != nil {
			return err
		}
	}
	return nil
}
