package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"storefront-access-gate/logger"
	"storefront-access-gate/shared"
	"storefront-access-gate/workflows"
)

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(cfg.Temporal.ClientOptions(logger.NewTemporalLogger(log)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

var openCmd = &cobra.Command{
	Use:     "open <store-id>",
	Short:   "Open an admin session for a store",
	Long:    `Start the gate session of a store, or attach to the one already running.`,
	Args:    cobra.ExactArgs(1),
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		storeID := args[0]
		// The workflow ID is the idempotency key: a second open attaches to the
		// running session instead of starting another one.
		we, err := c.ExecuteWorkflow(
			cmd.Context(),
			client.StartWorkflowOptions{
				ID:                       shared.SessionWorkflowID(storeID),
				TaskQueue:                shared.GateWorkflowTaskQueue,
				WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
			},
			workflows.GateSessionWorkflow,
			shared.SessionRequest{StoreID: storeID, Config: cfg.Gate},
		)
		if err != nil {
			return fmt.Errorf("unable to open session: %w", err)
		}

		fmt.Printf("🚪 Session open for store %s\n", storeID)
		fmt.Printf("   WorkflowID: %s\n", we.GetID())
		fmt.Printf("   RunID:      %s\n", we.GetRunID())
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:     "state <store-id>",
	Short:   "Show the resolved gate state",
	Args:    cobra.ExactArgs(1),
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.QueryWorkflow(cmd.Context(), shared.SessionWorkflowID(args[0]), "", shared.QueryGateState)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		var state shared.GateState
		if err := resp.Get(&state); err != nil {
			return fmt.Errorf("failed to decode state: %w", err)
		}
		printState(state)
		return nil
	},
}

var dismissCmd = &cobra.Command{
	Use:     "dismiss <store-id>",
	Short:   "Dismiss the onboarding wizard for the session",
	Args:    cobra.ExactArgs(1),
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalSession(cmd.Context(), args[0], shared.SignalDismissOnboarding)
	},
}

var closeCmd = &cobra.Command{
	Use:     "close <store-id>",
	Short:   "End the admin session",
	Args:    cobra.ExactArgs(1),
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalSession(cmd.Context(), args[0], shared.SignalSessionClosed)
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <store-id>",
	Short: "Finish onboarding and start the trial",
	Long: `Finish onboarding for a store that is in its onboarding window. The
command waits until the trial has been written and prints the new state.`,
	Args:    cobra.ExactArgs(1),
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		handle, err := c.UpdateWorkflow(cmd.Context(), client.UpdateWorkflowOptions{
			WorkflowID:   shared.SessionWorkflowID(args[0]),
			UpdateName:   shared.UpdateCompleteOnboarding,
			WaitForStage: client.WorkflowUpdateStageCompleted,
		})
		if err != nil {
			return fmt.Errorf("unable to complete onboarding: %w", err)
		}
		var state shared.GateState
		if err := handle.Get(cmd.Context(), &state); err != nil {
			return fmt.Errorf("onboarding not completed: %w", err)
		}

		fmt.Println("🎉 Trial started")
		printState(state)
		return nil
	},
}

func signalSession(ctx context.Context, storeID, signal string) error {
	c, err := dialTemporal()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.SignalWorkflow(ctx, shared.SessionWorkflowID(storeID), "", signal, nil); err != nil {
		return fmt.Errorf("unable to signal session: %w", err)
	}
	fmt.Printf("✅ Sent %s to store %s\n", signal, storeID)
	return nil
}

func printState(s shared.GateState) {
	fmt.Println()
	fmt.Printf("📋 State: %s", s.State)
	if s.LockedReason != "" {
		fmt.Printf(" (%s)", s.LockedReason)
	}
	fmt.Println()
	if s.DaysRemaining != nil {
		fmt.Printf("   Days remaining: %d\n", *s.DaysRemaining)
	}
	if s.Dismissed {
		fmt.Println("   Onboarding dismissed for this session")
	}
	if s.Onboarding != nil {
		fmt.Printf("   Onboarding deadline: %s\n", s.Onboarding.Deadline.Format("2006-01-02 15:04 MST"))
		for _, task := range s.Onboarding.Tasks {
			mark := "⬜"
			if task.Done {
				mark = "✅"
			}
			fmt.Printf("   %s %-10s %d/%d\n", mark, task.Intent, task.Current, task.Target)
		}
	}
}

func init() {
	rootCmd.AddCommand(openCmd, stateCmd, dismissCmd, closeCmd, completeCmd)
}
