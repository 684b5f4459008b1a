package commands

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kubeclient"
)

// RoleInfo describes one stage of the standard pipeline.
type RoleInfo struct {
	Position int    `json:"position" yaml:"position"`
	Role     string `json:"role"     yaml:"role"`
	Enabled  bool   `json:"enabled"  yaml:"enabled"`
}

// NewRolesCommand creates the roles command.
func NewRolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Show the pipeline order",
		Long: `Print every interceptor role of the standard pipeline in the order requests
pass through it. Roles that the current configuration would install are
marked as enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles := pipelineRoles(viper.GetViper())
			out := cmd.OutOrStdout()

			format, err := outputFormat(out)
			if err != nil {
				return err
			}

			if format != constants.FormatTable {
				return writeStructured(out, format, roles)
			}

			table := tablewriter.NewWriter(out)
			table.Header("#", "Role", "Enabled")

			for _, role := range roles {
				_ = table.Append(strconv.Itoa(role.Position), role.Role, strconv.FormatBool(role.Enabled))
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

// pipelineRoles marks the roles enabled by the configuration in v. When no
// usable configuration exists the defaults are assumed.
func pipelineRoles(v *viper.Viper) []RoleInfo {
	config, err := kubeclient.LoadConfig(v)
	if err != nil {
		config = kubeclient.DefaultConfig()
	}

	enabled := kubeclient.EnabledRoles(config)
	all := kubeclient.PipelineRoles()
	roles := make([]RoleInfo, 0, len(all))

	for index, role := range all {
		roles = append(roles, RoleInfo{
			Position: index + 1,
			Role:     role,
			Enabled:  slices.Contains(enabled, role),
		})
	}

	return roles
}
