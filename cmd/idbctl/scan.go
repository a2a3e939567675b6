package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/idbstore/pkg/engine"
	"github.com/cuemby/idbstore/pkg/idbtypes"
)

var scanCmd = &cobra.Command{
	Use:   "scan <database> <store>",
	Short: "Walk every record in an object store in primary-key order",
	Args:  cobra.ExactArgs(2),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().Bool("reverse", false, "Scan in descending key order")
	scanCmd.Flags().Int("limit", 0, "Stop after this many records (0 = unlimited)")
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	conn, err := s.openDatabase(args[0], nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	tr := conn.Begin([]string{args[1]}, idbtypes.ModeReadOnly, idbtypes.DurabilityDefault)
	store, err := tr.ObjectStore(args[1])
	if err != nil {
		return err
	}

	reverse, _ := cmd.Flags().GetBool("reverse")
	limit, _ := cmd.Flags().GetInt("limit")
	direction := idbtypes.DirectionNext
	if reverse {
		direction = idbtypes.DirectionPrev
	}

	req, err := store.OpenCursor(engine.All, direction)
	if err != nil {
		return err
	}
	result, err := s.await(req)
	if err != nil {
		return err
	}

	count := 0
	for result != nil {
		cursor := result.(*engine.Cursor)
		fmt.Printf("%s\t%s\n", marshalJSON(cursor.PrimaryKey()), marshalJSON(cursor.Value()))
		count++
		if limit > 0 && count >= limit {
			break
		}
		req, err := cursor.Continue(nil)
		if err != nil {
			return err
		}
		result, err = s.await(req)
		if err != nil {
			return err
		}
	}
	return nil
}
