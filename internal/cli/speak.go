package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
)

// speak 替代原先的语音测试工具，只验证合成链路。
func newSpeakCommand(e *env) *cobra.Command {
	var (
		output string
		voice  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize text with the configured speech provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("no text provided")
			}
			synth, err := e.synthesizer()
			if err != nil {
				return err
			}

			audio, err := synth.Synthesize(cmd.Context(), &speechmodel.TTSRequest{
				Text:   text,
				Voice:  speechmodel.Voice{Name: voice},
				Format: format,
			})
			if err != nil {
				return fmt.Errorf("synthesize: %w", err)
			}

			if output == "" {
				ext := audio.Format
				if ext == "" {
					ext = "mp3"
				}
				output = "speech." + ext
			}
			if err := os.WriteFile(output, audio.Data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes (%s) to %s\n", len(audio.Data), audio.Format, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default speech.<format>)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice id, defaults to the configured voice")
	cmd.Flags().StringVar(&format, "format", "", "Audio format, e.g. mp3")
	return cmd
}
