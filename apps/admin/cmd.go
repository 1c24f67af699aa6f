package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/upload"
	"github.com/placementcell/portal/services/api"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	client *api.Client
	runner upload.Runner
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  uploadpapers -username USERNAME -dir DIR -branch BRANCH -semester N [-category C] [-university U] - upload one sub-directory of PDFs per subject")
	fmt.Fprintln(cli.out, "  uploadzip -username USERNAME -file FILE [-university U] - upload a zip archive of papers")
	fmt.Fprintln(cli.out, "  export -username USERNAME -resource jobs|users|applications -out FILE - export a resource as CSV")
	fmt.Fprintln(cli.out, "  ping - check the backend is up")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	uploadPapersCmd := flag.NewFlagSet("uploadpapers", flag.ExitOnError)
	uploadPapersUname := uploadPapersCmd.String("username", "", "The admin's username. The password will be prompted next.")
	uploadPapersDir := uploadPapersCmd.String("dir", "", "Directory holding one sub-directory of PDF files per subject.")
	uploadPapersBranch := uploadPapersCmd.String("branch", "", "Branch code of the papers.")
	uploadPapersSemester := uploadPapersCmd.Int("semester", 0, "Semester of the papers.")
	uploadPapersCategory := uploadPapersCmd.String("category", cli.conf.Upload.Category, "Exam category.")
	uploadPapersUniversity := uploadPapersCmd.String("university", cli.conf.Upload.University, "University.")

	uploadZipCmd := flag.NewFlagSet("uploadzip", flag.ExitOnError)
	uploadZipUname := uploadZipCmd.String("username", "", "The admin's username. The password will be prompted next.")
	uploadZipFile := uploadZipCmd.String("file", "", "The zip archive to upload.")
	uploadZipUniversity := uploadZipCmd.String("university", cli.conf.Upload.University, "University.")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportUname := exportCmd.String("username", "", "The admin's username. The password will be prompted next.")
	exportResource := exportCmd.String("resource", "", "One of jobs, users or applications.")
	exportOut := exportCmd.String("out", "", "The CSV file to write.")

	ctx := context.Background()

	switch args[1] {
	case "uploadpapers":
		if err := uploadPapersCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uploadPapersUname == "" || *uploadPapersDir == "" || *uploadPapersBranch == "" || *uploadPapersSemester <= 0 {
			uploadPapersCmd.Usage()
			return errHelp
		}
		client, err := cli.login(ctx, uploadPapersCmd, *uploadPapersUname)
		if err != nil {
			return err
		}
		meta := upload.Meta{
			Branch:     strings.ToUpper(core.CleanString(*uploadPapersBranch)),
			Semester:   *uploadPapersSemester,
			Category:   *uploadPapersCategory,
			University: *uploadPapersUniversity,
		}
		return cli.uploadPapers(ctx, client, *uploadPapersDir, meta)
	case "uploadzip":
		if err := uploadZipCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uploadZipUname == "" || *uploadZipFile == "" {
			uploadZipCmd.Usage()
			return errHelp
		}
		client, err := cli.login(ctx, uploadZipCmd, *uploadZipUname)
		if err != nil {
			return err
		}
		return cli.uploadZip(ctx, client, *uploadZipFile, *uploadZipUniversity)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportUname == "" || *exportResource == "" || *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		if _, ok := exporters[*exportResource]; !ok {
			return errors.Errorf("unknown resource %q", *exportResource)
		}
		client, err := cli.login(ctx, exportCmd, *exportUname)
		if err != nil {
			return err
		}
		return cli.export(ctx, client, *exportResource, *exportOut)
	case "ping":
		if err := cli.client.Health(ctx); err != nil {
			return errors.Wrap(err, "backend is unreachable")
		}
		fmt.Fprintln(cli.out, "backend is up")
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

// login prompts the admin's password and returns a client authenticated as them.
func (cli *commandLine) login(ctx context.Context, cmd *flag.FlagSet, username string) (*api.Client, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return nil, err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return nil, errHelp
	}

	res, err := cli.client.Login(ctx, false, username, string(pwd))
	if err != nil {
		return nil, errors.Wrap(err, "login failed")
	}
	if !portal.RoleFromClaims(res.Roles).IsAdmin() {
		return nil, errors.New("access denied: this command is for administrators only")
	}
	return cli.client.WithToken(res.Token), nil
}
