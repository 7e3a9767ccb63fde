package main

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/finance"
)

// cliSession acts as a platform admin on behalf of the operator.
var cliSession = core.Session{ActorID: "admin-cli", Role: core.RoleAdmin}

// FinanceExportMailData feeds the finance_export email template.
type FinanceExportMailData struct {
	InstitutionName string
	From            string
	To              string
	Filename        string
}

func (cli *commandLine) deleteInstitution(id string) error {
	if err := cli.instSvc.Delete(context.Background(), cliSession, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "institution %s deleted\n", id)
	return nil
}

func (cli *commandLine) exportFinance(institutionID, out, from, to, mailTo string) error {
	ctx := context.Background()
	filter := &finance.QueryFilter{From: from, To: to}
	filter.Clean()
	if _, err := core.ParseDate(filter.From); filter.From != "" && err != nil {
		return fmt.Errorf("invalid -from date %q", from)
	}
	if _, err := core.ParseDate(filter.To); filter.To != "" && err != nil {
		return fmt.Errorf("invalid -to date %q", to)
	}
	var rcpt *mail.Address
	if mailTo != "" {
		addr, err := mail.ParseAddress(mailTo)
		if err != nil {
			return fmt.Errorf("invalid -mailto address %q", mailTo)
		}
		rcpt = addr
	}

	inst, err := cli.instSvc.Get(ctx, cliSession, institutionID)
	if err != nil {
		return err
	}
	data, err := cli.finSvc.ExportInstitution(ctx, inst.ID, filter)
	if err != nil {
		return err
	}
	if err = os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d bytes written to %s\n", len(data), out)

	if rcpt == nil {
		return nil
	}
	filename := filepath.Base(out)
	msg := &core.EmailMessage{
		To:           []mail.Address{*rcpt},
		Subject:      fmt.Sprintf("Financial report of %s", inst.Name),
		TemplateName: core.EmailFinanceExport,
		TemplateData: FinanceExportMailData{
			InstitutionName: inst.Name,
			From:            filter.From,
			To:              filter.To,
			Filename:        filename,
		},
	}
	if err = msg.Attach(bytes.NewReader(data), filename, finance.WorkbookContentType); err != nil {
		return err
	}
	cli.mailSvc.SendMessages(msg)
	cli.mailSvc.Wait()
	fmt.Fprintf(cli.out, "workbook sent to %s\n", rcpt.Address)
	return nil
}
