package cmd

import (
	"errors"
	"fmt"

	"riffloop/store"

	"github.com/spf13/cobra"
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Saved session management commands",
	Long:  "Commands for inspecting and clearing the saved practice session.",
}

// sessionShowCmd shows the saved session record
var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved session",
	Long:  "Display the session record that will be resumed when riffloop runs without a file argument.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New("")
		if err != nil {
			return err
		}

		rec, err := st.Load()
		if err != nil {
			if errors.Is(err, store.ErrNoSession) {
				fmt.Println("No saved session.")
				return nil
			}
			return err
		}

		fmt.Println("Saved session:")
		fmt.Printf("  File: %s\n", rec.Filename)
		fmt.Printf("  Segment: %.2fs - %.2fs\n", rec.StartTime, rec.EndTime)
		fmt.Printf("  Speed: %.2fx\n", rec.Speed)
		fmt.Printf("  Pitch: %+.2f semitones\n", rec.Pitch)
		fmt.Printf("  Loop: %v", rec.IsLooping)
		if rec.IsLooping {
			fmt.Printf(" (%.2fs pause)", rec.PauseBetweenLoops)
		}
		fmt.Println()
		fmt.Printf("  Count-in: %.2fs\n", rec.CountIn)

		return nil
	},
}

// sessionClearCmd removes the saved session record
var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the saved session",
	Long:  "Remove the saved session record so the next run starts fresh.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New("")
		if err != nil {
			return err
		}
		if err := st.Clear(); err != nil {
			return err
		}
		fmt.Println("Saved session cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}
