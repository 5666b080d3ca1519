package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bitdiag/bitdiag/pkg/diagnostic"
)

func parseRecords(cmd *cobra.Command, args []string) ([]diagnostic.Record, error) {
	text, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}
	return diagnostic.Parse(text)
}

func newRatesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "rates [file]",
		Short: "Print gamma, epsilon and power consumption",
		Args:  inputArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := parseRecords(cmd, args)
			if err != nil {
				return err
			}
			rates, err := diagnostic.ComputeRates(records)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, ratesOutput(rates))
			}
			printRates(out, rates)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func newRatingsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ratings [file]",
		Short: "Print oxygen generator, CO2 scrubber and life support ratings",
		Args:  inputArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := parseRecords(cmd, args)
			if err != nil {
				return err
			}
			ratings, err := diagnostic.ComputeRatings(records)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, ratingsOutput(ratings))
			}
			printRatings(out, ratings)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func newReportCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report [file]",
		Short: "Print rates and ratings together",
		Args:  inputArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := parseRecords(cmd, args)
			if err != nil {
				return err
			}
			rep, err := diagnostic.Diagnose(records)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, reportOutput{
					Records: rep.Records,
					Width:   rep.Width,
					Rates:   ratesOutput(rep.Rates),
					Ratings: ratingsOutput(rep.Ratings),
				})
			}
			fmt.Fprintf(out, "records:           %d\n", rep.Records)
			fmt.Fprintf(out, "width:             %d\n", rep.Width)
			printRates(out, rep.Rates)
			printRatings(out, rep.Ratings)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

type ratesJSON struct {
	Gamma            uint64 `json:"gamma"`
	Epsilon          uint64 `json:"epsilon"`
	PowerConsumption uint64 `json:"power_consumption"`
	GammaBits        string `json:"gamma_bits"`
	EpsilonBits      string `json:"epsilon_bits"`
	TiePositions     []int  `json:"tie_positions,omitempty"`
}

type ratingsJSON struct {
	Oxygen      uint64 `json:"oxygen"`
	CO2         uint64 `json:"co2"`
	LifeSupport uint64 `json:"life_support"`
	OxygenBits  string `json:"oxygen_bits"`
	CO2Bits     string `json:"co2_bits"`
}

type reportOutput struct {
	Records int         `json:"records"`
	Width   int         `json:"width"`
	Rates   ratesJSON   `json:"rates"`
	Ratings ratingsJSON `json:"ratings"`
}

func ratesOutput(r diagnostic.Rates) ratesJSON {
	return ratesJSON{
		Gamma:            r.Gamma,
		Epsilon:          r.Epsilon,
		PowerConsumption: r.PowerConsumption(),
		GammaBits:        diagnostic.Bits(r.Gamma, r.Width),
		EpsilonBits:      diagnostic.Bits(r.Epsilon, r.Width),
		TiePositions:     r.Ties(),
	}
}

func ratingsOutput(r diagnostic.Ratings) ratingsJSON {
	return ratingsJSON{
		Oxygen:      r.Oxygen,
		CO2:         r.CO2,
		LifeSupport: r.LifeSupport(),
		OxygenBits:  diagnostic.Bits(r.Oxygen, r.Width),
		CO2Bits:     diagnostic.Bits(r.CO2, r.Width),
	}
}

func printRates(w io.Writer, r diagnostic.Rates) {
	fmt.Fprintf(w, "gamma:             %d (%s)\n", r.Gamma, diagnostic.Bits(r.Gamma, r.Width))
	fmt.Fprintf(w, "epsilon:           %d (%s)\n", r.Epsilon, diagnostic.Bits(r.Epsilon, r.Width))
	fmt.Fprintf(w, "power consumption: %d\n", r.PowerConsumption())
}

func printRatings(w io.Writer, r diagnostic.Ratings) {
	fmt.Fprintf(w, "oxygen:            %d (%s)\n", r.Oxygen, diagnostic.Bits(r.Oxygen, r.Width))
	fmt.Fprintf(w, "co2:               %d (%s)\n", r.CO2, diagnostic.Bits(r.CO2, r.Width))
	fmt.Fprintf(w, "life support:      %d\n", r.LifeSupport())
}
