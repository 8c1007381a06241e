package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/go-park/weaver/pkg/aspect"
	"github.com/go-park/weaver/pkg/definition"
	"github.com/go-park/weaver/pkg/loader"
	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/source"
)

var joinPointKinds = map[string]metadata.JoinPointKind{
	"":                     metadata.JoinPointAny,
	"any":                  metadata.JoinPointAny,
	"execution":            metadata.JoinPointExecution,
	"call":                 metadata.JoinPointCall,
	"get":                  metadata.JoinPointFieldGet,
	"set":                  metadata.JoinPointFieldSet,
	"handler":              metadata.JoinPointHandler,
	"staticinitialization": metadata.JoinPointStaticInit,
}

func validateCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [packages...]",
		Short: "Build the definitions and report every problem found",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loader.Load(cfg.options(args)...)
			var invalid *loader.InvalidError
			if errors.As(err, &invalid) {
				printReport(cmd.OutOrStdout(), invalid.Problems)
				return err
			}
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), l.Report())
			fmt.Fprintln(cmd.OutOrStdout(), l.Set())
			return nil
		},
	}
}

func printReport(w io.Writer, report []string) {
	for _, msg := range report {
		fmt.Fprintln(w, msg)
	}
}

func matchCmd(cfg *config) *cobra.Command {
	var (
		typ, member, kind, caller, ret string
		params                         []string
	)
	cmd := &cobra.Command{
		Use:   "match [packages...]",
		Short: "Print the advice and introductions applying at a join point",
		RunE: func(cmd *cobra.Command, args []string) error {
			jpKind, ok := joinPointKinds[strings.ToLower(kind)]
			if !ok {
				return fmt.Errorf("unknown join point kind %q", kind)
			}
			l, err := loader.Load(cfg.options(args)...)
			if err != nil {
				return err
			}
			var provider metadata.Provider
			if p := l.Provider(); p != nil {
				provider = p
			}
			jp, err := joinPoint(provider, typ, member, ret, params)
			if err != nil {
				return err
			}
			jp.Kind = jpKind
			if caller != "" {
				jp.Caller = &metadata.Type{Name: caller}
			}
			return printMatch(cmd.OutOrStdout(), l.Set(), jp)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "type of the join point")
	cmd.Flags().StringVar(&member, "member", "", "member of the join point, empty for the type itself")
	cmd.Flags().StringVar(&kind, "kind", "execution", "join point kind")
	cmd.Flags().StringVar(&caller, "caller", "", "calling type of a call join point")
	cmd.Flags().StringVar(&ret, "return", "void", "member type, when not scanned")
	cmd.Flags().StringSliceVar(&params, "params", nil, "member parameter types, when not scanned")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// joinPoint resolves the join point against the scanned packages, or builds
// it from the flags when they do not declare the type.
func joinPoint(p metadata.Provider, typ, member, ret string, params []string) (metadata.JoinPoint, error) {
	if p != nil {
		jp, err := metadata.JoinPointOf(p, typ, member)
		if err == nil {
			return jp, nil
		}
		if !errors.Is(err, metadata.ErrNotFound) {
			return metadata.JoinPoint{}, err
		}
	}
	jp := metadata.JoinPoint{Type: &metadata.Type{Name: typ}}
	if member != "" {
		jp.Member = &metadata.Member{
			Name:       member,
			Declaring:  typ,
			ReturnType: ret,
			Params:     params,
		}
	}
	return jp, nil
}

func printMatch(w io.Writer, s *definition.Set, jp metadata.JoinPoint) error {
	fmt.Fprintf(w, "join point: %s\n", jp)
	if jp.Member != nil {
		chain, err := s.AdviceChainFor(jp)
		if err != nil {
			return err
		}
		for _, part := range []struct {
			typ  aspect.AdviceType
			list []*aspect.Advice
		}{
			{aspect.Around, chain.Around},
			{aspect.Before, chain.Before},
			{aspect.After, chain.After},
		} {
			names := make([]string, 0, len(part.list))
			for _, adv := range part.list {
				names = append(names, adv.QualifiedName())
			}
			fmt.Fprintf(w, "%s: %s\n", part.typ, strings.Join(names, ", "))
		}
	}
	intros, err := s.IntroductionsFor(jp.Type)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(intros))
	for _, i := range intros {
		names = append(names, i.Name())
	}
	fmt.Fprintf(w, "introductions: %s\n", strings.Join(names, ", "))
	return nil
}

func scanCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [packages...]",
		Short: "Print the definitions declared by annotations and files as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			l := loader.NewLoader(cfg.options(args)...).LoadFiles().ParsePackage().Inspect()
			if err := l.Err(); err != nil {
				return err
			}
			defs, err := l.Definitions()
			if err != nil {
				return err
			}
			return source.Encode(cmd.OutOrStdout(), defs)
		},
	}
}

func watchCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch FILE [packages...]",
		Short: "Rebuild and validate the definitions every time FILE changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := definition.NewRegistry()
			opts := append(cfg.options(args[1:]), loader.WithRegistry(reg))
			l := loader.NewLoader(opts...).LoadFiles().ParsePackage().Inspect()
			if err := l.Err(); err != nil {
				return err
			}
			err := l.Watch(ctx, args[0], func(s *definition.Set, report []string, err error) {
				if err != nil {
					return
				}
				printReport(cmd.OutOrStdout(), report)
				logrus.WithField("definitions", s.ID().String()).Info(s)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
