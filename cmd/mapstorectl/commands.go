package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// withStore opens a store for the duration of run
func withStore(flags *rootFlags, open openFunc, run func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		s, err := flags.open(cmd, open)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.close(cmd); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return run(cmd, s, args)
	}
}

func newGetCmd(flags *rootFlags, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored for a key",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(flags, open, func(cmd *cobra.Command, s *session, args []string) error {
			value, found, err := s.store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		}),
	}
}

func newGetAllCmd(flags *rootFlags, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get-all KEY...",
		Short: "Print the stored entries for several keys as YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(flags, open, func(cmd *cobra.Command, s *session, args []string) error {
			entries, err := s.store.LoadAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(entries)
		}),
	}
}

func newPutCmd(flags *rootFlags, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY=VALUE...",
		Short: "Store one or more entries",
		Long:  "Store one or more entries. A single entry is written with Store, several with StoreAll.",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(flags, open, func(cmd *cobra.Command, s *session, args []string) error {
			entries := make(map[string]string, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid entry %q, want KEY=VALUE", arg)
				}
				entries[k] = v
			}
			if len(entries) == 1 {
				for k, v := range entries {
					return s.store.Store(cmd.Context(), k, v)
				}
			}
			return s.store.StoreAll(cmd.Context(), entries)
		}),
	}
}

func newDeleteCmd(flags *rootFlags, open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY...",
		Short: "Delete one or more entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(flags, open, func(cmd *cobra.Command, s *session, args []string) error {
			if len(args) == 1 {
				return s.store.Delete(cmd.Context(), args[0])
			}
			return s.store.DeleteAll(cmd.Context(), args)
		}),
	}
}

func newKeysCmd(flags *rootFlags, open openFunc) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: withStore(flags, open, func(cmd *cobra.Command, s *session, args []string) error {
			var keys []string
			for k, err := range s.store.LoadAllKeys(cmd.Context()) {
				if err != nil {
					return err
				}
				keys = append(keys, k)
				if limit > 0 && len(keys) >= limit {
					break
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many keys (0 lists all)")
	return cmd
}
