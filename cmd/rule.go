package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"opsgate/internal/bootstrap"
	"opsgate/internal/errs"
	"opsgate/internal/usecase/approvals"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage auto-approval rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an auto-approval rule from a TOML definition",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		ruleFile, err := cmd.Flags().GetString("file")
		if err != nil {
			return err
		}

		def, err := approvals.LoadRuleFile(ruleFile)
		if err != nil {
			return errs.Wrap(err, "load rule file")
		}

		record, err := svc.CreateRule(cmd.Context(), def)
		if err != nil {
			return errs.Wrap(err, "create rule")
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "rule %s (%s) created: active=%t\n",
			record.RuleCode, record.RuleID, record.Active)
		return err
	}),
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List auto-approval rules in evaluation order",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		includeInactive, err := cmd.Flags().GetBool("all")
		if err != nil {
			return err
		}

		rules, err := svc.ListRules(cmd.Context(), includeInactive)
		if err != nil {
			return errs.Wrap(err, "list rules")
		}

		writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "CODE\tNAME\tACTIVE\tAPPLIED\tLAST APPLIED")
		for _, rule := range rules {
			lastApplied := "never"
			if rule.LastAppliedAt != nil {
				lastApplied = rule.LastAppliedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(writer, "%s\t%s\t%t\t%d\t%s\n",
				rule.RuleCode, rule.RuleName, rule.Active, rule.TimesApplied, lastApplied)
		}
		return writer.Flush()
	}),
}

var ruleEnableCmd = &cobra.Command{
	Use:   "enable <rule-code>",
	Short: "Activate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		return svc.SetRuleActiveByCode(cmd.Context(), cmd.Flags().Arg(0), true)
	}),
}

var ruleDisableCmd = &cobra.Command{
	Use:   "disable <rule-code>",
	Short: "Deactivate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *approvals.Service) error {
		return svc.SetRuleActiveByCode(cmd.Context(), cmd.Flags().Arg(0), false)
	}),
}

func init() {
	rootCmd.AddCommand(ruleCmd)
	ruleCmd.AddCommand(ruleAddCmd)
	ruleCmd.AddCommand(ruleListCmd)
	ruleCmd.AddCommand(ruleEnableCmd)
	ruleCmd.AddCommand(ruleDisableCmd)

	ruleAddCmd.Flags().String("file", "rule.toml", "Path to the rule definition file")
	ruleListCmd.Flags().Bool("all", false, "Include inactive rules")
}
