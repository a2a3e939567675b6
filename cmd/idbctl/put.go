package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/idbstore/pkg/idbtypes"
)

var putCmd = &cobra.Command{
	Use:   "put <database> <store> <json-value>",
	Short: "Insert or overwrite a JSON value in an object store",
	Args:  cobra.ExactArgs(3),
	RunE:  runPut,
}

func init() {
	putCmd.Flags().String("key", "", "Explicit JSON-encoded key, for out-of-line stores without one derived from the value")
}

func runPut(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	var value any
	if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
		return fmt.Errorf("parse value: %w", err)
	}

	var explicitKey any
	if raw, _ := cmd.Flags().GetString("key"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &explicitKey); err != nil {
			return fmt.Errorf("parse key: %w", err)
		}
	}

	conn, err := s.openDatabase(args[0], nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	tr := conn.Begin([]string{args[1]}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault)
	store, err := tr.ObjectStore(args[1])
	if err != nil {
		return err
	}
	req, err := store.Put(value, explicitKey)
	if err != nil {
		return err
	}
	result, err := s.await(req)
	if err != nil {
		return err
	}
	fmt.Printf("key: %s\n", marshalJSON(result))
	return nil
}
