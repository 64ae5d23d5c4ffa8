package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

func (a *app) newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Browse therapy rooms",
	}
	cmd.AddCommand(a.newRoomsListCmd(), a.newRoomsGetCmd())
	return cmd
}

func (a *app) newRoomsListCmd() *cobra.Command {
	var (
		typ       string
		premium   bool
		query     string
		pageSize  int
		pageToken string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active rooms, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.RoomFilter{SearchQuery: query}
			if typ != "" {
				t := models.RoomType(typ)
				if !t.Valid() {
					return fmt.Errorf("unknown room type %q: use game, conversation or analysis", typ)
				}
				filter.Type = &t
			}
			if cmd.Flags().Changed("premium") {
				filter.IsPremium = &premium
			}

			var (
				page models.RoomPage
				err  error
			)
			if pageSize > 0 || pageToken != "" {
				if pageSize <= 0 {
					pageSize = 20
				}
				page, err = a.deps.Catalog.ListRoomsPage(cmd.Context(), filter, pageSize, pageToken)
			} else {
				page.Items, err = a.deps.Catalog.ListRooms(cmd.Context(), filter)
			}
			if err != nil {
				return fmt.Errorf("failed to list rooms: %w", err)
			}

			if a.format != formatTable {
				return printStructured(cmd.OutOrStdout(), a.format, page)
			}
			return renderRooms(cmd.OutOrStdout(), page)
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "room type: game, conversation, analysis")
	cmd.Flags().BoolVar(&premium, "premium", false, "only premium (--premium) or only free (--premium=false) rooms")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search in names and descriptions")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size; 0 lists the whole catalog")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "token of the next page")
	return cmd
}

func (a *app) newRoomsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug>",
		Short: "Show one room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := a.deps.Catalog.GetRoom(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get room: %w", err)
			}
			if room == nil {
				return fmt.Errorf("room %q: %w", args[0], models.ErrNotFound)
			}
			if a.format != formatTable {
				return printStructured(cmd.OutOrStdout(), a.format, room)
			}
			printRoom(cmd.OutOrStdout(), room)
			return nil
		},
	}
}

func renderRooms(w io.Writer, page models.RoomPage) error {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No rooms found")
		return nil
	}
	t := NewTable("SLUG", "NAME", "TYPE", "PREMIUM", "DESCRIPTION")
	for _, r := range page.Items {
		t.AddRow(r.Slug, r.NameEN, string(r.Type), strconv.FormatBool(r.IsPremium), truncate(r.DescriptionEN, 48))
	}
	if err := t.Render(w); err != nil {
		return err
	}
	if page.NextPageToken != "" {
		fmt.Fprintf(w, "\nNext page: --page-token %s\n", page.NextPageToken)
	}
	return nil
}

func printRoom(w io.Writer, r *models.Room) {
	fmt.Fprintf(w, "Slug:        %s\n", r.Slug)
	fmt.Fprintf(w, "Name:        %s / %s\n", r.NameEN, r.NameAR)
	fmt.Fprintf(w, "Type:        %s\n", r.Type)
	fmt.Fprintf(w, "Premium:     %s\n", strconv.FormatBool(r.IsPremium))
	if r.DescriptionEN != "" {
		fmt.Fprintf(w, "Description: %s\n", r.DescriptionEN)
	}
	switch {
	case r.Config.Game != nil:
		fmt.Fprintf(w, "Questions:   %d\n", len(r.Config.Game.Questions))
	case r.Config.Analysis != nil:
		fmt.Fprintf(w, "Questions:   %d\n", len(r.Config.Analysis.Questions))
	case r.Config.Conversation != nil:
		fmt.Fprintf(w, "Max turns:   %d\n", r.Config.Conversation.MaxTurns)
		fmt.Fprintf(w, "Max minutes: %d\n", r.Config.Conversation.MaxDurationMinutes)
	}
}
