package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/drishti/internal/store"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect and edit the face gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered faces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.store.Close()

		names := svc.gallery.Names()
		if len(names) == 0 {
			fmt.Println("No faces registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tREGISTERED\tLAST SEEN")
		fmt.Fprintln(w, "----\t----------\t---------")
		for _, name := range names {
			registered, lastSeen := "-", "never"
			if reg, err := svc.store.Registrations().Latest(name); err == nil {
				registered = reg.CreatedAt.Local().Format("2006-01-02 15:04")
			}
			if seen, err := svc.store.Sightings().LastSeen(name); err == nil {
				lastSeen = seen.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, registered, lastSeen)
		}
		return w.Flush()
	},
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "remove NAME...",
	Short: "Remove faces from the gallery",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.store.Close()

		for _, name := range args {
			if _, ok := svc.gallery.Get(name); !ok {
				fmt.Printf("%s is not registered\n", name)
				continue
			}
			if err := svc.gallery.Remove(name); err != nil {
				return err
			}
			if _, err := svc.store.Registrations().DeleteByName(name); err != nil && !errors.Is(err, store.ErrNotFound) {
				logger.Warn("delete registrations", "name", name, "err", err)
			}
			fmt.Printf("Removed %s\n", name)
		}
		return nil
	},
}

func init() {
	galleryCmd.AddCommand(galleryListCmd, galleryRemoveCmd)
	rootCmd.AddCommand(galleryCmd)
}
