package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"uzigbee-devices/internal/converter"
	"uzigbee-devices/internal/interview"
	"uzigbee-devices/internal/repl"
	"uzigbee-devices/internal/script"
	"uzigbee-devices/internal/zcl"
)

func validateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every descriptor source and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, closeFn, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tSOURCE\tORIGIN\tEXTEND")
			for _, e := range cat.Entries() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", e.Descriptor.Model, e.Source, e.Origin, e.Descriptor.Kinds())
			}
			tw.Flush()

			issues := cat.Issues()
			for _, is := range issues {
				fmt.Fprintf(out, "skipped %s %s %s: %s\n", is.Source, is.Origin, is.Model, is.Error)
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d source problem(s), %d descriptors ok", len(issues), cat.Len())
			}
			fmt.Fprintf(out, "%d descriptors ok\n", cat.Len())
			return nil
		},
	}
}

var exportFormats = []string{"js", "json", "yaml", "devicefile", "lua"}

func exportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "export {js|json|yaml|devicefile|lua}",
		Short:     "Render the merged registry",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: exportFormats,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, closeFn, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			for _, is := range cat.Issues() {
				a.logger.Warn("descriptor skipped", "source", is.Source, "origin", is.Origin, "model", is.Model, "err", is.Error)
			}

			ds := cat.Descriptors()
			return writeOutput(cmd, output, func(w io.Writer) error {
				switch args[0] {
				case "js":
					return converter.RenderJS(w, ds)
				case "json":
					return converter.RenderJSON(w, ds)
				case "yaml":
					return converter.RenderYAML(w, ds)
				case "devicefile":
					return converter.RenderDeviceFile(w, ds, zcl.NewStandardRegistry(a.logger))
				default:
					return script.RenderLua(w, ds)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func templateCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "template {js|lua}",
		Short:     "Print the custom device template",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"js", "lua"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd, output, func(w io.Writer) error {
				if args[0] == "js" {
					return converter.RenderTemplateJS(w)
				}
				_, err := io.WriteString(w, script.TemplateSource())
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func interviewCmd(a *app) *cobra.Command {
	var (
		flagID      interview.Identity
		powerSource string
		port        string
		baud        int
		endpoint    int
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Check a device identity against the registry",
		Long: `Check a device identity against the registry.

With --port the identity is read from a uzigbee board over its MicroPython
REPL; identity flags given as well override what the board reports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := flagID
			if port != "" {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				read, err := readIdentity(ctx, port, baud, endpoint, a.logger)
				if err != nil {
					return err
				}
				id = overrideIdentity(cmd, read, flagID)
			}
			if port == "" || cmd.Flags().Changed("power-source") {
				ps, err := parsePowerSource(powerSource)
				if err != nil {
					return err
				}
				id.PowerSource = &ps
			}

			cat, closeFn, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			report := interview.Check(cat, id)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Result.OK {
				return fmt.Errorf("identity invalid: %v", report.Result.Errors)
			}
			if report.Error != "" {
				return fmt.Errorf("%s", report.Error)
			}
			return nil
		},
	}
	def := interview.Defaults()
	cmd.Flags().StringVar(&flagID.ManufacturerName, "manufacturer", def.ManufacturerName, "Basic cluster manufacturer name")
	cmd.Flags().StringVar(&flagID.ModelIdentifier, "model", def.ModelIdentifier, "Basic cluster model identifier")
	cmd.Flags().StringVar(&flagID.DateCode, "date-code", "", "Basic cluster date code")
	cmd.Flags().StringVar(&flagID.SWBuildID, "sw-build-id", "", "Basic cluster software build id")
	cmd.Flags().StringVar(&powerSource, "power-source", "mains (single phase)", "power source value (0-6) or bridge name")
	cmd.Flags().StringVar(&port, "port", "", "serial port of a uzigbee board to read the identity from")
	cmd.Flags().IntVar(&baud, "baud", repl.DefaultBaud, "serial baud rate")
	cmd.Flags().IntVar(&endpoint, "endpoint", 1, "endpoint whose Basic cluster is read")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the board")
	return cmd
}

func readIdentity(ctx context.Context, name string, baud, endpoint int, logger *slog.Logger) (interview.Identity, error) {
	p, err := repl.OpenPort(name, baud)
	if err != nil {
		return interview.Identity{}, err
	}
	defer p.Close()
	return repl.NewSession(p, logger).Identity(ctx, endpoint)
}

// overrideIdentity replaces fields of read with the identity flags the user
// set explicitly.
func overrideIdentity(cmd *cobra.Command, read, flags interview.Identity) interview.Identity {
	for name, field := range map[string]struct{ dst, src *string }{
		"manufacturer": {&read.ManufacturerName, &flags.ManufacturerName},
		"model":        {&read.ModelIdentifier, &flags.ModelIdentifier},
		"date-code":    {&read.DateCode, &flags.DateCode},
		"sw-build-id":  {&read.SWBuildID, &flags.SWBuildID},
	} {
		if cmd.Flags().Changed(name) {
			*field.dst = *field.src
		}
	}
	return read
}

func parsePowerSource(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if n, ok := interview.PowerSourceFromString(s); ok {
		return n, nil
	}
	return 0, fmt.Errorf("unknown power source %q", s)
}

// writeOutput renders to path, or to stdout when path is empty. A failed
// render leaves no partial file.
func writeOutput(cmd *cobra.Command, path string, render func(io.Writer) error) error {
	if path == "" {
		return render(cmd.OutOrStdout())
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
