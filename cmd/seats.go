package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bnema/emuwl/internal/controller"
	wlinput "github.com/bnema/emuwl/internal/input/wayland"
	"github.com/bnema/emuwl/internal/ui"
)

var (
	seatsJSON bool

	seatsCmd = &cobra.Command{
		Use:   "seats",
		Short: "List the input devices built from Wayland seats",
		RunE:  listSeats,
	}
)

func init() {
	seatsCmd.Flags().BoolVar(&seatsJSON, "json", false, "print JSON")
}

type seatReport struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Source        string   `json:"source"`
	QualifiedName string   `json:"qualified_name"`
	Valid         bool     `json:"valid"`
	Inputs        []string `json:"inputs"`
}

func listSeats(cmd *cobra.Command, args []string) error {
	// seats only queries input, so it needs no native handles
	conn, err := connectQuery(displayName)
	if err != nil {
		return err
	}
	defer conn.Close()

	b := wlinput.New(wlinput.Options{NewCompiler: newCompiler})
	if err := b.Init(conn); err != nil {
		return err
	}
	ci := controller.New()
	defer ci.Shutdown()
	if err := ci.RegisterBackend(b); err != nil {
		return err
	}

	reports := make([]seatReport, 0)
	for _, d := range ci.Devices() {
		r := seatReport{
			ID:            d.ID,
			Name:          d.Device.Name(),
			Source:        d.Device.Source(),
			QualifiedName: d.QualifiedName(),
			Valid:         d.Device.IsValid(),
		}
		for _, in := range d.Device.Inputs() {
			r.Inputs = append(r.Inputs, in.Name())
		}
		reports = append(reports, r)
	}

	out := cmd.OutOrStdout()
	if seatsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	if len(reports) == 0 {
		fmt.Fprintln(out, ui.WarningStyle.Render("No seats found"))
		return nil
	}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			ui.FormatStatus(r.Valid, r.Name),
			r.QualifiedName,
			strconv.Itoa(len(r.Inputs)),
		})
	}
	fmt.Fprintln(out, ui.FormatHeader("Wayland seats"))
	fmt.Fprintln(out, ui.Table([]string{"ID", "NAME", "DEVICE", "INPUTS"}, rows))
	return nil
}
