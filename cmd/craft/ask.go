package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/craft"
	"github.com/ShayCichocki/craft/internal/llm"
)

var askRole string

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Get a single non-streamed answer",
	Long: `Send a prompt to the model and print the complete answer once it arrives.
A surrounding code fence in the answer is removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		answer, err := a.client.Complete(ctx, llm.Request{System: askRole, Prompt: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askRole, "role", craft.DefaultRole, "System role sent with the prompt")
}
