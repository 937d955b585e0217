package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/client"
)

func newPingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withGraph(cmd, func(ctx context.Context, gr *client.Graph) error {
				start := time.Now()
				if err := gr.Ping(ctx); err != nil {
					return err
				}
				took := time.Since(start)
				if g.json {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"dialect": gr.Dialect(),
						"latency": took.String(),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", gr.Dialect(), took.Round(time.Microsecond))
				return nil
			})
		},
	}
}

func newStatsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print graph statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withGraph(cmd, func(ctx context.Context, gr *client.Graph) error {
				st, err := gr.Statistics(ctx)
				if err != nil {
					return err
				}
				if g.json {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"vertices":            st.VertexCount,
						"edges":               st.EdgeCount,
						"labels":              st.LabelCount,
						"properties":          st.PropertyCount,
						"native_transactions": st.NativeTransactions,
					})
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "vertices\t%s\n", count(st.VertexCount))
				fmt.Fprintf(w, "edges\t%s\n", count(st.EdgeCount))
				fmt.Fprintf(w, "labels\t%s\n", count(st.LabelCount))
				fmt.Fprintf(w, "properties\t%s\n", count(st.PropertyCount))
				fmt.Fprintf(w, "native transactions\t%t\n", st.NativeTransactions)
				return w.Flush()
			})
		},
	}
}

// count formats an optional statistic; unknown counts print as "-".
func count[T uint32 | uint64](n *T) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

type queryFlags struct {
	params     []string
	maxResults int
	timeout    time.Duration
	explain    bool
	profile    bool
	readOnly   bool
}

func newQueryCmd(g *globals) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a native query in its own transaction",
		Long: `Run a query in the native language of the dialect (Cypher, AQL or
Gremlin). Parameters are given as name=value, with values parsed as YAML
scalars: -p age=42 -p name=alice -p active=true.

The transaction is committed unless --read-only is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(qf.params)
			if err != nil {
				return err
			}
			opts := unigraph.QueryOptions{
				Timeout:    qf.timeout,
				MaxResults: qf.maxResults,
				Explain:    qf.explain,
				Profile:    qf.profile,
			}
			return g.withGraph(cmd, func(ctx context.Context, gr *client.Graph) error {
				res, err := runQuery(ctx, gr, args[0], params, opts, qf.readOnly)
				if err != nil {
					return err
				}
				if g.json {
					return printJSON(cmd.OutOrStdout(), resultJSON(res))
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&qf.params, "param", "p", nil, "query parameter name=value, repeatable")
	f.IntVar(&qf.maxResults, "max-results", 0, "truncate the result")
	f.DurationVar(&qf.timeout, "query-timeout", 0, "server-side query timeout")
	f.BoolVar(&qf.explain, "explain", false, "return the query plan")
	f.BoolVar(&qf.profile, "profile", false, "run with profiling")
	f.BoolVar(&qf.readOnly, "read-only", false, "run in a read-only transaction and roll back")
	return cmd
}

func runQuery(ctx context.Context, gr *client.Graph, q string, params unigraph.PropertyMap, opts unigraph.QueryOptions, readOnly bool) (*unigraph.QueryExecutionResult, error) {
	begin := gr.Tx
	if readOnly {
		begin = gr.ReadTx
	}
	tx, err := begin(ctx)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecuteQuery(ctx, q, params, opts)
	if err != nil {
		if rerr := tx.Rollback(ctx); rerr != nil {
			return nil, fmt.Errorf("%w: rolling back: %v", err, rerr)
		}
		return nil, err
	}
	if readOnly {
		return res, tx.Rollback(ctx)
	}
	return res, tx.Commit(ctx)
}

// parseParams parses name=value pairs. Values are YAML scalars; an empty
// value is the empty string and "null" or "~" is null.
func parseParams(kvs []string) (unigraph.PropertyMap, error) {
	params := make(unigraph.PropertyMap, 0, len(kvs))
	for _, kv := range kvs {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, usagef("parameter %q: want name=value", kv)
		}
		var x any
		if raw != "" {
			if err := yaml.Unmarshal([]byte(raw), &x); err != nil {
				return nil, usagef("parameter %q: %v", name, err)
			}
		} else {
			x = ""
		}
		v, err := unigraph.ValueOf(x)
		if err != nil {
			return nil, usagef("parameter %q: %v", name, err)
		}
		params = append(params, unigraph.Property{Name: name, Value: v})
	}
	return params, nil
}

func printResult(w io.Writer, res *unigraph.QueryExecutionResult) error {
	r := res.Result
	switch r.Kind {
	case unigraph.ResultVertices:
		for _, v := range r.Vertices {
			fmt.Fprintf(w, "(%s:%s %s)\n", v.ID, v.Type, props(v.Properties))
		}
	case unigraph.ResultEdges:
		for _, e := range r.Edges {
			fmt.Fprintf(w, "(%s)-[%s:%s %s]->(%s)\n", e.From, e.ID, e.Type, props(e.Properties), e.To)
		}
	case unigraph.ResultPaths:
		for _, p := range r.Paths {
			var b strings.Builder
			for i, v := range p.Vertices {
				if i > 0 {
					fmt.Fprintf(&b, "-[%s]->", p.Edges[i-1].Type)
				}
				fmt.Fprintf(&b, "(%s)", v.ID)
			}
			fmt.Fprintln(w, b.String())
		}
	case unigraph.ResultRows:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		if len(r.Rows) > 0 {
			names := make([]string, len(r.Rows[0]))
			for i, p := range r.Rows[0] {
				names[i] = p.Name
			}
			fmt.Fprintln(tw, strings.Join(names, "\t"))
		}
		for _, row := range r.Rows {
			cells := make([]string, len(row))
			for i, p := range row {
				cells[i] = p.Value.String()
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	default:
		for _, v := range r.Values {
			fmt.Fprintln(w, v.String())
		}
	}
	fmt.Fprintf(w, "%d %s", r.Len(), r.Kind)
	if res.ExecutionTime != nil {
		fmt.Fprintf(w, " in %s", res.ExecutionTime.Round(time.Microsecond))
	}
	if res.RowsAffected != nil {
		fmt.Fprintf(w, ", %d affected", *res.RowsAffected)
	}
	fmt.Fprintln(w)
	if res.Explanation != nil {
		fmt.Fprintf(w, "\nplan:\n%s\n", *res.Explanation)
	}
	if res.Profile != nil {
		fmt.Fprintf(w, "\nprofile:\n%s\n", *res.Profile)
	}
	return nil
}

func props(m unigraph.PropertyMap) string {
	parts := make([]string, len(m))
	for i, p := range m {
		parts[i] = p.Name + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func plain(m unigraph.PropertyMap) map[string]any {
	out := make(map[string]any, len(m))
	for _, p := range m {
		switch x := p.Value.Interface().(type) {
		case nil, bool, string, []byte,
			int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64:
			out[p.Name] = x
		default:
			out[p.Name] = p.Value.String()
		}
	}
	return out
}

func vertexJSON(v unigraph.Vertex) map[string]any {
	return map[string]any{"id": v.ID.String(), "type": v.Type, "labels": v.Labels, "properties": plain(v.Properties)}
}

func edgeJSON(e unigraph.Edge) map[string]any {
	return map[string]any{
		"id": e.ID.String(), "type": e.Type,
		"from": e.From.String(), "to": e.To.String(),
		"properties": plain(e.Properties),
	}
}

func resultJSON(res *unigraph.QueryExecutionResult) map[string]any {
	r := res.Result
	var items []any
	switch r.Kind {
	case unigraph.ResultVertices:
		for _, v := range r.Vertices {
			items = append(items, vertexJSON(v))
		}
	case unigraph.ResultEdges:
		for _, e := range r.Edges {
			items = append(items, edgeJSON(e))
		}
	case unigraph.ResultPaths:
		for _, p := range r.Paths {
			vs := make([]any, len(p.Vertices))
			for i, v := range p.Vertices {
				vs[i] = vertexJSON(v)
			}
			es := make([]any, len(p.Edges))
			for i, e := range p.Edges {
				es[i] = edgeJSON(e)
			}
			items = append(items, map[string]any{"vertices": vs, "edges": es, "length": p.Length})
		}
	case unigraph.ResultRows:
		for _, row := range r.Rows {
			items = append(items, plain(row))
		}
	default:
		for _, v := range r.Values {
			items = append(items, plain(unigraph.PropertyMap{{Name: "v", Value: v}})["v"])
		}
	}
	out := map[string]any{"kind": r.Kind.String(), "results": items}
	if res.ExecutionTime != nil {
		out["execution_time"] = res.ExecutionTime.String()
	}
	if res.RowsAffected != nil {
		out["rows_affected"] = *res.RowsAffected
	}
	if res.Explanation != nil {
		out["explanation"] = *res.Explanation
	}
	if res.Profile != nil {
		out["profile"] = *res.Profile
	}
	return out
}

func newSchemaCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect schema definitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List vertex labels, edge labels and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withGraph(cmd, func(ctx context.Context, gr *client.Graph) error {
				s := gr.Schema()
				vls, err := s.ListVertexLabels(ctx)
				if err != nil {
					return err
				}
				els, err := s.ListEdgeLabels(ctx)
				if err != nil {
					return err
				}
				idx, err := s.ListIndexes(ctx)
				if err != nil {
					return err
				}
				if g.json {
					indexes := make([]any, len(idx))
					for i, ix := range idx {
						indexes[i] = map[string]any{
							"name": ix.Name, "label": ix.Label, "properties": ix.Properties,
							"type": ix.Type.String(), "unique": ix.Unique, "status": ix.Status.String(),
						}
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"vertex_labels": vls, "edge_labels": els, "indexes": indexes,
					})
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, l := range vls {
					fmt.Fprintf(w, "vertex\t%s\n", l)
				}
				for _, l := range els {
					fmt.Fprintf(w, "edge\t%s\n", l)
				}
				for _, ix := range idx {
					unique := ""
					if ix.Unique {
						unique = " unique"
					}
					fmt.Fprintf(w, "index\t%s\t%s(%s)\t%s%s\t%s\n",
						ix.Name, ix.Label, strings.Join(ix.Properties, ", "), ix.Type, unique, ix.Status)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
