package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/wyfcoding/revmgmt/algorithm/revenue"
	"github.com/wyfcoding/revmgmt/logging"
)

var classFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "fares",
		Required: true,
		Usage:    "comma separated fares, most expensive first",
	},
	&cli.StringFlag{
		Name:     "demands",
		Required: true,
		Usage:    "comma separated mean demands, NA for unknown",
	},
	&cli.StringFlag{
		Name:  "sigmas",
		Usage: "comma separated demand standard deviations",
	},
	&cli.IntFlag{
		Name:  "capacity",
		Usage: "remaining capacity, 0 means uncapped where allowed",
	},
	&cli.StringFlag{
		Name:  "policy",
		Value: revenue.ForceTopFare.String(),
		Usage: "top class policy when its demand is zero (force_top_fare, drop_undemanded)",
	},
	&cli.BoolFlag{
		Name:  "repair",
		Value: true,
		Usage: "enforce non-decreasing protection levels",
	},
}

var protectCmd = &cli.Command{
	Name:    "protect",
	Usage:   "Compute protection levels",
	Aliases: []string{"p"},
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "method", Value: revenue.MethodEMSRbMR.String(), Usage: "EMSRb or EMSRb_MR"},
	}, classFlags...),
	Action: func(ctx *cli.Context) error {
		o, classes, err := parseInput(ctx)
		if err != nil {
			return err
		}
		method, err := revenue.ParseMethod(ctx.String("method"))
		if err != nil {
			return err
		}
		defer logging.LogDuration(ctx.Context, "protect", "method", method.String())()

		levels, err := o.ProtectionLevels(classes, method, float64(ctx.Int("capacity")))
		if err != nil {
			return err
		}
		return writeJSON(ctx, map[string]any{
			"method":            method,
			"capacity":          ctx.Int("capacity"),
			"protection_levels": levels,
		})
	},
}

var limitsCmd = &cli.Command{
	Name:    "limits",
	Usage:   "Compute booking limits",
	Aliases: []string{"l"},
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "method", Value: revenue.MethodEMSRbMR.String(), Usage: "EMSRb, EMSRb_MR or EMSRb_MR_step"},
		&cli.IntFlag{Name: "workers", Usage: "parallelism of the stepwise solver, 0 means GOMAXPROCS"},
		&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "computation timeout"},
	}, classFlags...),
	Action: func(ctx *cli.Context) error {
		o, classes, err := parseInput(ctx)
		if err != nil {
			return err
		}
		method, err := revenue.ParseMethod(ctx.String("method"))
		if err != nil {
			return err
		}
		defer logging.LogDuration(ctx.Context, "limits", "method", method.String())()

		c, cancel := context.WithTimeout(ctx.Context, ctx.Duration("timeout"))
		defer cancel()
		limits, err := o.BookingLimits(c, classes, method, ctx.Int("capacity"))
		if err != nil {
			return err
		}
		return writeJSON(ctx, limits)
	},
}

var transformCmd = &cli.Command{
	Name:    "transform",
	Usage:   "Run the fare transformation and print the efficient frontier",
	Aliases: []string{"t"},
	Flags:   classFlags,
	Action: func(ctx *cli.Context) error {
		o, classes, err := parseInput(ctx)
		if err != nil {
			return err
		}
		t, err := o.Transform(classes.Fares, classes.Demands, revenue.WithCap(float64(ctx.Int("capacity"))))
		if err != nil {
			return err
		}
		return writeJSON(ctx, t)
	},
}

func parseInput(ctx *cli.Context) (*revenue.Optimizer, revenue.FareClasses, error) {
	logging.SetDefault(logging.NewFromConfig(logging.Config{
		Service: "revmgmt",
		Module:  ctx.Command.Name,
		Level:   ctx.String("log-level"),
		Format:  "console",
		Output:  ctx.App.ErrWriter,
	}))

	var classes revenue.FareClasses
	fares, err := parseFares(ctx.String("fares"))
	if err != nil {
		return nil, classes, err
	}
	demands, err := parseFloats(ctx.String("demands"), true)
	if err != nil {
		return nil, classes, fmt.Errorf("demands: %w", err)
	}
	var sigmas []float64
	if s := ctx.String("sigmas"); s != "" {
		if sigmas, err = parseFloats(s, false); err != nil {
			return nil, classes, fmt.Errorf("sigmas: %w", err)
		}
	}
	policy, err := revenue.ParseTopClassPolicy(ctx.String("policy"))
	if err != nil {
		return nil, classes, err
	}

	o := revenue.NewOptimizer(
		revenue.WithMonotonicRepair(ctx.Bool("repair")),
		revenue.WithTopClassPolicy(policy),
		revenue.WithWorkers(ctx.Int("workers")),
	)
	classes = revenue.FareClasses{Fares: fares, Demands: demands, Sigmas: sigmas}
	return o, classes, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// parseFares 以 decimal 解析票价，避免 "0.1" 之类的十进制输入在解析阶段失真.
func parseFares(s string) ([]float64, error) {
	fields := splitList(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return nil, fmt.Errorf("fare %q: %w", f, err)
		}
		out[i] = d.InexactFloat64()
	}
	return out, nil
}

func parseFloats(s string, allowNA bool) ([]float64, error) {
	fields := splitList(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		if allowNA && (strings.EqualFold(f, "NA") || strings.EqualFold(f, "null")) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeJSON(ctx *cli.Context, v any) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
