package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nurpe/freight-quotes/internal/client"
	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/portal"
	"github.com/nurpe/freight-quotes/internal/quotesync"
	"github.com/nurpe/freight-quotes/internal/tui"
)

// --- session ---

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store the portal session token",
	Long: `Store the portal session token used for every request.

When portal_url is configured the token is verified first and only stored
if the portal accepts it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.gate == nil {
			if err := a.store.SaveCredential(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return err
			}
			printWarning("portal_url not configured; token stored without verification")
			return nil
		}

		result, err := a.gate.Login(cmd.Context(), args[0])
		if errors.Is(err, portal.ErrInvalidSession) {
			if result != nil && result.Message != "" {
				return errors.New(result.Message)
			}
			return errors.New("sessão inválida")
		}
		if err != nil {
			return fmt.Errorf("verifying session: %w", err)
		}

		if result.User == nil {
			printSuccess("Sessão iniciada")
			return nil
		}
		name := result.User.Name
		if name == "" {
			name = result.User.Username
		}
		printSuccess("Sessão iniciada como %s", name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.ClearCredential(cmd.Context()); err != nil {
			return err
		}
		printSuccess("Sessão encerrada")
		return nil
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List quotes for a month",
	Long: `List quotes for a month, newest first.

Examples:
  quotes list
  quotes list --month 2024-05 --status fechado
  quotes list --all --carrier "Acme Cargas"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := readFilter(cmd)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.loadEngine(cmd.Context())
		if err != nil {
			return err
		}

		quotes := filter.Apply(e.Snapshot().Records)
		renderQuotes(cmd.OutOrStdout(), quotes)
		renderSummary(cmd.OutOrStdout(), filter, quotes)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show every field of one quote",
	Long: `Show every field of one quote, read straight from the server.

Example:
  quotes show 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		q, err := a.client.GetQuote(cmd.Context(), model.ParseQuoteID(args[0]))
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("cotação %s não encontrada", strings.TrimSpace(args[0]))
		}
		if err != nil {
			return err
		}
		renderQuote(cmd.OutOrStdout(), *q)
		return nil
	},
}

// --- add / edit ---

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new quote",
	Long: `Register a new quote.

Examples:
  quotes add --requester Ana --carrier "Acme Cargas" --price 1250.90 --destination Campinas
  quotes add --requester Ana --carrier Rapido --date 2024-05-10 --closed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		draft, err := applyDraftFlags(cmd, model.QuoteDraft{QuoteDate: model.DateOf(time.Now())})
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		saved, err := e.Create(cmd.Context(), draft)
		if err != nil {
			return err
		}
		printSuccess("Cotação registrada! (%s)", saved.ID)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of an existing quote",
	Long: `Change fields of an existing quote. Only the flags given are changed.

Example:
  quotes edit 6f1c... --price 990 --notes "valor renegociado"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		current, ok := e.Find(model.ParseQuoteID(args[0]))
		if !ok {
			return fmt.Errorf("cotação %s não encontrada", args[0])
		}
		draft, err := applyDraftFlags(cmd, current.Draft())
		if err != nil {
			return err
		}
		if draft.Equal(current.Draft()) {
			printWarning("nothing to change")
			return nil
		}
		if _, err := e.Update(cmd.Context(), current.ID, draft); err != nil {
			return err
		}
		printSuccess("Cotação atualizada!")
		return nil
	},
}

// --- delete / toggle ---

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("deleting is permanent; pass --yes to confirm")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		if err := e.Remove(cmd.Context(), model.ParseQuoteID(args[0])); err != nil {
			return err
		}
		printSuccess("Cotação excluída!")
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip the deal closed mark of a quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		q, err := e.ToggleDealClosed(cmd.Context(), model.ParseQuoteID(args[0]))
		if err != nil {
			return err
		}
		if q.DealClosed {
			printSuccess("Negócio fechado!")
		} else {
			printSuccess("Marcação removida!")
		}
		return nil
	},
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download a spreadsheet or PDF report",
	Long: `Download the filtered quotes as an Excel workbook or a PDF report.

Examples:
  quotes export --month 2024-05
  quotes export --format pdf --carrier "Acme Cargas" --output relatorio.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		exportFormat := model.ExportFormat(strings.ToLower(strings.TrimSpace(format)))
		if exportFormat != model.ExportFormatXLSX && exportFormat != model.ExportFormatPDF {
			return fmt.Errorf("unsupported format %q (use xlsx or pdf)", format)
		}
		filter, err := readFilter(cmd)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name, content, err := a.client.Export(cmd.Context(), exportFormat, filter)
		if err != nil {
			return err
		}
		if output == "" {
			output = filepath.Base(name)
		}
		if err := os.WriteFile(output, content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		printSuccess("Relatório salvo em %s", output)
		printStatus("Tamanho", "%d bytes", len(content))
		return nil
	},
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the interactive view with live sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.gate != nil {
			if err := ensureSession(cmd.Context(), a.gate); err != nil {
				return err
			}
		}

		forwarder := &tui.Forwarder{}
		e := a.engine(forwarder)

		program := tea.NewProgram(tui.New(tui.Options{Context: cmd.Context(), Engine: e}), tea.WithAltScreen())
		forwarder.Attach(program)

		e.Start(cmd.Context())
		defer e.Stop()

		_, err = program.Run()
		return err
	},
}

func init() {
	for _, cmd := range []*cobra.Command{listCmd, exportCmd} {
		addFilterFlags(cmd)
	}
	exportCmd.Flags().String("format", string(model.ExportFormatXLSX), "report format: xlsx or pdf")
	exportCmd.Flags().StringP("output", "o", "", "output file (default: name suggested by the server)")

	addDraftFlags(addCmd)
	addDraftFlags(editCmd)
	_ = addCmd.MarkFlagRequired("requester")
	_ = addCmd.MarkFlagRequired("carrier")

	deleteCmd.Flags().Bool("yes", false, "confirm the deletion")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("month", "", "month as YYYY-MM (default: current month)")
	cmd.Flags().Bool("all", false, "ignore the month and include every quote")
	cmd.Flags().String("search", "", "free text search")
	cmd.Flags().String("requester", "", "only quotes from this requester")
	cmd.Flags().String("carrier", "", "only quotes from this carrier")
	cmd.Flags().String("status", "", "deal status: aberto or fechado")
}

func readFilter(cmd *cobra.Command) (model.QuoteFilter, error) {
	month, _ := cmd.Flags().GetString("month")
	all, _ := cmd.Flags().GetBool("all")
	search, _ := cmd.Flags().GetString("search")
	requester, _ := cmd.Flags().GetString("requester")
	carrier, _ := cmd.Flags().GetString("carrier")
	status, _ := cmd.Flags().GetString("status")

	filter := model.QuoteFilter{
		Search:    strings.TrimSpace(search),
		Requester: strings.TrimSpace(requester),
		Carrier:   strings.TrimSpace(carrier),
	}

	dealStatus, err := model.ParseDealStatus(status)
	if err != nil {
		return model.QuoteFilter{}, err
	}
	filter.Status = dealStatus

	switch {
	case all:
	case strings.TrimSpace(month) != "":
		year, m, err := model.ParseMonth(month)
		if err != nil {
			return model.QuoteFilter{}, err
		}
		filter.Year, filter.Month = year, m
	default:
		now := time.Now()
		filter.Year, filter.Month = now.Year(), now.Month()
	}
	return filter, nil
}

func addDraftFlags(cmd *cobra.Command) {
	cmd.Flags().String("requester", "", "person who requested the quote")
	cmd.Flags().String("carrier", "", "carrier name")
	cmd.Flags().String("destination", "", "destination")
	cmd.Flags().String("number", "", "carrier quote number")
	cmd.Flags().Float64("price", 0, "freight price")
	cmd.Flags().String("seller", "", "seller")
	cmd.Flags().String("document", "", "document number")
	cmd.Flags().String("delivery", "", "delivery estimate")
	cmd.Flags().String("channel", "", "communication channel")
	cmd.Flags().String("collection", "", "collection code")
	cmd.Flags().String("contact", "", "contact at the carrier")
	cmd.Flags().String("date", "", "quote date as YYYY-MM-DD (default: today)")
	cmd.Flags().String("notes", "", "free notes")
	cmd.Flags().Bool("closed", false, "mark the deal as closed")
}

// applyDraftFlags copies every flag the user set onto draft.
func applyDraftFlags(cmd *cobra.Command, draft model.QuoteDraft) (model.QuoteDraft, error) {
	text := map[string]*string{
		"requester":   &draft.Requester,
		"carrier":     &draft.Carrier,
		"destination": &draft.Destination,
		"number":      &draft.QuoteNumber,
		"seller":      &draft.Seller,
		"document":    &draft.Document,
		"delivery":    &draft.DeliveryEstimate,
		"channel":     &draft.CommunicationChannel,
		"collection":  &draft.CollectionCode,
		"contact":     &draft.CarrierContact,
		"notes":       &draft.Notes,
	}
	flags := cmd.Flags()
	for name, field := range text {
		if flags.Changed(name) {
			*field, _ = flags.GetString(name)
		}
	}

	if flags.Changed("price") {
		price, _ := flags.GetFloat64("price")
		if price < 0 {
			return model.QuoteDraft{}, errors.New("price must not be negative")
		}
		draft.Price = price
	}
	if flags.Changed("closed") {
		draft.DealClosed, _ = flags.GetBool("closed")
	}
	if flags.Changed("date") {
		raw, _ := flags.GetString("date")
		date, err := model.ParseDate(raw)
		if err != nil {
			return model.QuoteDraft{}, err
		}
		draft.QuoteDate = date
	}

	draft = draft.Normalize()
	if draft.Requester == "" || draft.Carrier == "" {
		return model.QuoteDraft{}, errors.New("requester and carrier must not be blank")
	}
	if draft.QuoteDate.IsZero() {
		return model.QuoteDraft{}, errors.New("date is required")
	}
	return draft, nil
}

func isOffline(err error) bool {
	return errors.Is(err, quotesync.ErrOffline)
}
