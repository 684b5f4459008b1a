package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kubeclient"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var ref kubeclient.ResourceRef

	cmd := &cobra.Command{
		Use:   "get RESOURCE [NAME]",
		Short: "Fetch a resource or list a collection",
		Long: `Fetch a single resource by name, or list a collection when no name is given.
Requests go through the full client pipeline.`,
		Example: `  kubeclient get pods -n default -l app=web
  kubeclient get deployments api -n default --group apps`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref.Resource = strings.ToLower(args[0])
			if len(args) == 2 {
				ref.Name = args[1]
			}

			client, err := newClient(cmd.Context(), viper.GetViper())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			return runGet(cmd.Context(), cmd.OutOrStdout(), client.Resources(), ref)
		},
	}

	cmd.Flags().StringVarP(&ref.Namespace, "namespace", "n", "", "namespace of the resource; empty for cluster-scoped resources")
	cmd.Flags().StringVar(&ref.Group, "group", "", "API group; empty for the core group")
	cmd.Flags().StringVar(&ref.Version, "api-version", kubeclient.DefaultVersion, "API version")
	cmd.Flags().StringVarP(&ref.LabelSelector, "selector", "l", "", "label selector for lists")
	cmd.Flags().StringVar(&ref.FieldSelector, "field-selector", "", "field selector for lists")
	cmd.Flags().Int64Var(&ref.Limit, "limit", 0, "maximum number of items per list page")
	cmd.Flags().StringVar(&ref.Continue, "continue", "", "continue token from a previous list")

	return cmd
}

// resourceGetter is the part of kubeclient.Resources used by get.
type resourceGetter interface {
	Get(ctx context.Context, ref kubeclient.ResourceRef) (*unstructured.Unstructured, error)
	List(ctx context.Context, ref kubeclient.ResourceRef) (*unstructured.UnstructuredList, error)
}

func runGet(ctx context.Context, out io.Writer, resources resourceGetter, ref kubeclient.ResourceRef) error {
	format, err := outputFormat(out)
	if err != nil {
		return err
	}

	var (
		items    []unstructured.Unstructured
		document any
		next     string
	)

	if ref.Name != "" {
		obj, err := resources.Get(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", ref, err)
		}

		items = []unstructured.Unstructured{*obj}
		document = obj.Object
	} else {
		list, err := resources.List(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", ref.Resource, err)
		}

		items = list.Items
		document = list.UnstructuredContent()
		next = list.GetContinue()
	}

	if format != constants.FormatTable {
		return writeStructured(out, format, document)
	}

	return resourceTable(out, items, next)
}

func resourceTable(out io.Writer, items []unstructured.Unstructured, next string) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "No resources found.")

		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("Namespace", "Name", "Kind", "Created")

	for _, item := range items {
		namespace := item.GetNamespace()
		if namespace == "" {
			namespace = constants.NotAvailable
		}

		created := constants.NotAvailable
		if ts := item.GetCreationTimestamp(); !ts.IsZero() {
			created = ts.Format(constants.TimestampFormat)
		}

		_ = table.Append(namespace, item.GetName(), item.GetKind(), created)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if next != "" {
		_, err := fmt.Fprintf(out, "\nMore results available, use --continue %s\n", next)

		return err
	}

	return nil
}

// newClient creates a pipeline client from the CLI configuration. Refreshed
// OAuth2 tokens are written back to the config file in use.
func newClient(ctx context.Context, v *viper.Viper) (*kubeclient.Client, error) {
	config, err := kubeclient.LoadConfig(v)
	if err != nil {
		return nil, err
	}

	if config.TokenURL != "" && v.ConfigFileUsed() != "" {
		config.TokenPersister = NewConfigPersister(v)
	}

	client, err := kubeclient.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}
