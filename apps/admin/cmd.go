package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	profRepo profile.Repository
	instSvc  *institution.Service
	finSvc   *finance.Service
	mailSvc  core.EmailService
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]  - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-role ROLE] [-institution ID] - create or update a profile")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset a profile's password")
	fmt.Fprintln(cli.out, "  deleteinstitution -id ID - delete an institution and every record it owns")
	fmt.Fprintln(cli.out, "  exportfinance -institution ID -out FILE [-from DATE] [-to DATE] [-mailto EMAIL] - export financial records to xlsx")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The profile's display name.")
	addUserEmail := addUserCmd.String("email", "", "The profile's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", core.RoleAdmin, "One of admin, coordinator, staff.")
	addUserInst := addUserCmd.String("institution", "", "The institution the profile belongs to (empty for admins).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The profile's email. The password will be prompted next.")

	deleteInstCmd := flag.NewFlagSet("deleteinstitution", flag.ContinueOnError)
	deleteInstID := deleteInstCmd.String("id", "", "The institution's ID.")

	exportCmd := flag.NewFlagSet("exportfinance", flag.ContinueOnError)
	exportInst := exportCmd.String("institution", "", "The institution's ID.")
	exportOut := exportCmd.String("out", "", "Path of the xlsx file to write.")
	exportFrom := exportCmd.String("from", "", "First date (YYYY-MM-DD) of the export, inclusive.")
	exportTo := exportCmd.String("to", "", "Last date (YYYY-MM-DD) of the export, inclusive.")
	exportMailTo := exportCmd.String("mailto", "", "Also email the workbook to this address.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, deleteInstCmd, exportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserRole, *addUserInst)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "deleteinstitution":
		if err := deleteInstCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteInstID == "" {
			deleteInstCmd.Usage()
			return errHelp
		}
		return cli.deleteInstitution(*deleteInstID)

	case "exportfinance":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportInst == "" || *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportFinance(*exportInst, *exportOut, *exportFrom, *exportTo, *exportMailTo)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
