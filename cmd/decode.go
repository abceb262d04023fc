package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/hdrstack/internal/core/decoder"
	"firestige.xyz/hdrstack/internal/render"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode packets given as hex strings",
	Long: `Decode one packet per argument, or one packet per line of stdin when no
arguments are given. Whitespace, ':' and '-' separators and a leading 0x are
ignored. Empty lines and lines starting with '#' are skipped.

Examples:
  hdrstack decode 66778899aabb001122334455080045...
  hdrstack decode --entry network --format json < packets.txt`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := loadConfig(cmd); err != nil {
			exitWithError("failed to load config", err)
		}
		if err := runDecode(decodeOpts, args, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			exitWithError("decode failed", err)
		}
	},
}

type decodeOptions struct {
	entry    string
	format   string
	hexBytes int
}

var decodeOpts decodeOptions

func init() {
	decodeCmd.Flags().StringVarP(&decodeOpts.entry, "entry", "e", "link",
		"where packets start: link or network")
	decodeCmd.Flags().StringVarP(&decodeOpts.format, "format", "o", "text",
		"output format: text, json or yaml")
	decodeCmd.Flags().IntVar(&decodeOpts.hexBytes, "payload-bytes", 32,
		"payload bytes to dump as hex (0 disables)")
}

// runDecode decodes every packet and writes one summary each. It returns an
// error when any packet failed to decode, after all of them were written.
func runDecode(opts decodeOptions, args []string, in io.Reader, out io.Writer) error {
	entry, err := decoder.ParseEntry(opts.entry)
	if err != nil {
		return err
	}
	decode, err := entry.Resolve(layers.LinkTypeEthernet)
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if args, err = readHexLines(in); err != nil {
			return err
		}
	}
	if len(args) == 0 {
		return fmt.Errorf("no packets given")
	}

	w := render.NewWriter(out, format)
	var failed int
	for i, arg := range args {
		data, err := parseHex(arg)
		if err != nil {
			return fmt.Errorf("packet %d: %w", i+1, err)
		}

		var s render.Summary
		stack, err := decode(data)
		if err != nil {
			failed++
			s = render.ErrorOf(len(data), err)
		} else {
			s = render.Summarize(stack, len(data), opts.hexBytes)
		}
		s.Index = uint64(i + 1)

		if err := w.Write(s); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d packets failed to decode", failed, len(args))
	}
	return nil
}

func readHexLines(in io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return lines, nil
}

var hexSeparators = strings.NewReplacer(" ", "", "\t", "", ":", "", "-", "")

func parseHex(s string) ([]byte, error) {
	s = hexSeparators.Replace(strings.TrimSpace(s))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}
