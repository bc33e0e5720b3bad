package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/tetra/internal/invoke"
	"github.com/oriys/tetra/internal/output"
	"github.com/oriys/tetra/internal/spec"
	"github.com/spf13/cobra"
)

func invokeCmd() *cobra.Command {
	var manifestPath string
	var payloadFlag string

	cmd := &cobra.Command{
		Use:   "invoke <resource-name>",
		Short: "Call a declared resource ad-hoc, outside an orchestrator-driven deploy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			manifestFile, err := spec.ParseFile(manifestPath)
			if err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}
			resources, err := manifestFile.ToResourceConfigs()
			if err != nil {
				return fmt.Errorf("validate manifest: %w", err)
			}

			target := -1
			for i, r := range resources {
				if r.Name == name {
					target = i
					break
				}
			}
			if target < 0 {
				return fmt.Errorf("resource %q not found in %s", name, manifestPath)
			}

			payload, err := readPayload(payloadFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			env, err := buildEnvironment(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			binding := invoke.RegisterRemote(name, resources[target], env.dispatcher, invoke.JSONSerializer{}, nil)

			start := time.Now()
			var result json.RawMessage
			callErr := binding.Call(ctx, payload, &result)
			elapsed := time.Since(start)

			invokeResult := output.InvokeResult{
				RequestID:  uuid.NewString(),
				Success:    callErr == nil,
				Output:     result,
				DurationMs: elapsed.Milliseconds(),
			}
			if callErr != nil {
				invokeResult.Error = callErr.Error()
			}

			if err := env.printer.PrintInvokeResult(invokeResult); err != nil {
				return fmt.Errorf("print result: %w", err)
			}
			if callErr != nil {
				return fmt.Errorf("invoke %s: %w", name, callErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "file", "f", "", "manifest file declaring the resource to invoke")
	cmd.Flags().StringVarP(&payloadFlag, "payload", "p", "", "JSON call payload; '-' reads stdin, unset sends {}")
	cmd.MarkFlagRequired("file")
	return cmd
}

func readPayload(flag string) (json.RawMessage, error) {
	switch flag {
	case "":
		return json.RawMessage("{}"), nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		return json.RawMessage(data), nil
	default:
		return json.RawMessage(flag), nil
	}
}
