package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/idbstore/pkg/engine"
	"github.com/cuemby/idbstore/pkg/idbtypes"
)

var getCmd = &cobra.Command{
	Use:   "get <database> <store> <json-key>",
	Short: "Read the value stored under a key",
	Args:  cobra.ExactArgs(3),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	var key any
	if err := json.Unmarshal([]byte(args[2]), &key); err != nil {
		return fmt.Errorf("parse key: %w", err)
	}
	q, err := engine.KeyQuery(key)
	if err != nil {
		return err
	}

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
	req, err := store.Get(q)
	if err != nil {
		return err
	}
	result, err := s.await(req)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("(not found)")
		return nil
	}
	fmt.Println(marshalJSON(result))
	return nil
}
