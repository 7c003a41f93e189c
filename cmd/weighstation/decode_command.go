package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"weighstation/internal/scale"
)

func newDecodeCommand() *cobra.Command {
	var offset int
	var sentinel int

	cmd := &cobra.Command{
		Use:   "decode [HEX|TEXT]",
		Short: "Decode a scale record, or filter a captured stream from stdin",
		Long: `Decode a single record given as hex bytes or as text with Go escapes
(for example 'ST,GS,   0000520kg  \r\n'). With no argument, stdin is split into
records and run through the stability filter, printing one line per record.`,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				record, err := parseRecordArg(args[0])
				if err != nil {
					return err
				}
				reading, err := scale.Decode(record)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d\n", reading.Stability(), reading.Weight)
				return nil
			}
			return decodeStream(cmd.InOrStdin(), out, scale.NewFilter(offset, sentinel))
		},
	}
	cmd.Flags().IntVar(&offset, "offset", scale.DefaultOffset, "Stability filter offset")
	cmd.Flags().IntVar(&sentinel, "sentinel", scale.DefaultSentinel, "Initial last-accepted weight")
	return cmd
}

// parseRecordArg accepts a hex dump or escaped text. A missing delimiter is
// completed with CRLF so hand-typed records decode.
func parseRecordArg(arg string) ([]byte, error) {
	compact := strings.Join(strings.Fields(arg), "")
	if len(compact) == scale.RecordLength*2 {
		if raw, err := hex.DecodeString(compact); err == nil {
			return raw, nil
		}
	}
	text, err := strconv.Unquote(`"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\r\n"
	}
	return []byte(text), nil
}

func decodeStream(in io.Reader, out io.Writer, filter *scale.Filter) error {
	var frames scale.FrameBuffer
	reader := bufio.NewReader(in)
	buf := make([]byte, 256)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			frames.Append(buf[:n])
			for {
				frame, ok := frames.Next()
				if !ok {
					break
				}
				fmt.Fprintln(out, describeFrame(frame, filter))
			}
		}
		if errors.Is(err, io.EOF) {
			if pending := frames.Pending(); pending > 0 {
				fmt.Fprintf(out, "partial record: %d bytes without delimiter\n", pending)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func describeFrame(frame []byte, filter *scale.Filter) string {
	reading, err := scale.Decode(frame)
	if err != nil {
		return fmt.Sprintf("dropped: %v", err)
	}
	if weight, ok := filter.Evaluate(reading); ok {
		return fmt.Sprintf("%s %d accepted", reading.Stability(), weight)
	}
	return fmt.Sprintf("%s %d ignored", reading.Stability(), reading.Weight)
}
