package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/idbstore/pkg/idbtypes"
)

var listDatabasesCmd = &cobra.Command{
	Use:   "list-databases",
	Short: "List every database registered at the storage path",
	RunE:  runListDatabases,
}

func runListDatabases(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	dbs, err := s.factory.List()
	if err != nil {
		return err
	}
	for _, db := range dbs {
		fmt.Printf("%s\tv%d\n", db.Name, db.Version)
	}
	return nil
}

var deleteDatabaseCmd = &cobra.Command{
	Use:   "delete-database <name>",
	Short: "Delete a database and its storage file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteDatabase,
}

func runDeleteDatabase(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	req := s.factory.DeleteDatabase(args[0])
	if _, err := s.await(req); err != nil {
		return err
	}
	fmt.Printf("deleted database %q\n", args[0])
	return nil
}

var createStoreCmd = &cobra.Command{
	Use:   "create-store <database> <store>",
	Short: "Create an object store inside a database, bumping its schema version",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreateStore,
}

func init() {
	createStoreCmd.Flags().String("key-path", "", "Dotted in-line key path (omitted for out-of-line keys)")
	createStoreCmd.Flags().Bool("auto-increment", false, "Generate primary keys automatically")
}

func runCreateStore(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	conn, err := s.openDatabase(args[0], nil)
	if err != nil {
		return err
	}

	var nextVersion *uint64
	v := conn.Version() + 1
	nextVersion = &v
	conn.Close()

	conn, err = s.openDatabase(args[0], nextVersion)
	if err != nil {
		return err
	}
	defer conn.Close()

	keyPathStr, _ := cmd.Flags().GetString("key-path")
	autoIncrement, _ := cmd.Flags().GetBool("auto-increment")
	var keyPath []string
	if keyPathStr != "" {
		keyPath = []string{keyPathStr}
	}

	tr := conn.Begin(nil, idbtypes.ModeVersionChange, idbtypes.DurabilityDefault)
	if _, err := tr.CreateObjectStore(args[1], keyPath, false, autoIncrement); err != nil {
		return err
	}
	s.sched.RunAll()
	if tr.Aborted() {
		return tr.Error()
	}
	fmt.Printf("created store %q in database %q (now v%d)\n", args[1], args[0], *nextVersion)
	return nil
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
