package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"studysphere/internal/client"

	"golang.org/x/term"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp         = errors.New("help provided")
	errNotLoggedIn  = errors.New("not logged in, run: studyctl login -username NAME")
	errInvalidInput = errors.New("invalid input")
)

type commandLine struct {
	baseURL   string
	tokenPath string
	out       io.Writer
	in        io.Reader
	logger    *slog.Logger

	// now and chatInterval are overridden in tests
	now          func() time.Time
	chatInterval time.Duration
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME|EMAIL       - sign in, the password is prompted")
	fmt.Fprintln(cli.out, "  logout                               - sign out")
	fmt.Fprintln(cli.out, "  sessions [-group ID]                 - list study sessions")
	fmt.Fprintln(cli.out, "  show -id ID                          - show a session and your RSVP state")
	fmt.Fprintln(cli.out, "  rsvp -id ID                          - RSVP to a session")
	fmt.Fprintln(cli.out, "  attend -id ID -code CODE             - mark attendance with the host's code")
	fmt.Fprintln(cli.out, "  resources -id ID                     - list shared resources")
	fmt.Fprintln(cli.out, "  add-resource -id ID -title T -link U - share a link")
	fmt.Fprintln(cli.out, "  delete-resource -id ID -rid RID [-yes] - delete a resource")
	fmt.Fprintln(cli.out, "  chat -id ID [-send TEXT] [-follow [-for DURATION]] - read or post session chat")
	fmt.Fprintln(cli.out, "  groups                               - list study groups")
	fmt.Fprintln(cli.out, "  join -group ID                       - join a study group")
	fmt.Fprintln(cli.out, "  leaderboard [-period week|all]       - show the XP leaderboard")
}

func (cli *commandLine) clock() time.Time {
	if cli.now != nil {
		return cli.now()
	}
	return time.Now()
}

func (cli *commandLine) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx, stop := signalContext()
	defer stop()

	switch args[1] {
	case "login":
		return cli.login(ctx, args[2:])
	case "logout":
		return cli.logout(ctx)
	case "sessions":
		return cli.sessions(ctx, args[2:])
	case "show":
		return cli.show(ctx, args[2:])
	case "rsvp":
		return cli.rsvp(ctx, args[2:])
	case "attend":
		return cli.attend(ctx, args[2:])
	case "resources":
		return cli.resources(ctx, args[2:])
	case "add-resource":
		return cli.addResource(ctx, args[2:])
	case "delete-resource":
		return cli.deleteResource(ctx, args[2:])
	case "chat":
		return cli.chat(ctx, args[2:])
	case "groups":
		return cli.groups(ctx)
	case "join":
		return cli.join(ctx, args[2:])
	case "leaderboard":
		return cli.leaderboard(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

// parse parses args and reports errHelp for -h or bad flags.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	return nil
}

func requireID(fs *flag.FlagSet, id int64) error {
	if id <= 0 {
		fs.Usage()
		return errHelp
	}
	return nil
}

// Identity persistence

func (cli *commandLine) anonymous() *client.Client {
	return client.New(cli.baseURL, client.WithLogger(cli.logger))
}

func (cli *commandLine) signedIn() (*client.Client, error) {
	data, err := os.ReadFile(cli.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var id client.Identity
	if err := json.Unmarshal(data, &id); err != nil || id.Token == "" {
		return nil, errNotLoggedIn
	}
	return client.New(cli.baseURL, client.WithLogger(cli.logger), client.WithIdentity(id)), nil
}

func (cli *commandLine) saveIdentity(id *client.Identity) error {
	if err := os.MkdirAll(filepath.Dir(cli.tokenPath), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(cli.tokenPath, data, 0o600)
}

// Commands

func (cli *commandLine) login(ctx context.Context, args []string) error {
	fs := cli.flags("login")
	username := fs.String("username", "", "Your username or email. The password will be prompted next.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *username == "" {
		fs.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return errHelp
	}

	c, err := cli.anonymous().Login(ctx, *username, string(pwd))
	if err != nil {
		return err
	}
	if err := cli.saveIdentity(c.Identity()); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Logged in as %s\n", c.Identity().User.Username)
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	c, err := cli.signedIn()
	if errors.Is(err, errNotLoggedIn) {
		fmt.Fprintln(cli.out, "Already logged out")
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.Logout(ctx); err != nil {
		cli.logger.Warn("server logout failed", "error", err)
	}
	if err := os.Remove(cli.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	fmt.Fprintln(cli.out, "Logged out")
	return nil
}

func (cli *commandLine) sessions(ctx context.Context, args []string) error {
	fs := cli.flags("sessions")
	group := fs.Int64("group", 0, "Only list sessions of this group.")
	if err := parse(fs, args); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}

	var list []client.Session
	if *group > 0 {
		list, err = c.Sessions.ListForGroup(ctx, *group)
	} else {
		list, err = c.Sessions.List(ctx)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCOURSE\tWHEN\tATTENDEES\tSTATE")
	for i := range list {
		s := &list[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s %s\t%d\t%s\n",
			s.ID, s.Title, s.CourseCode, s.Date, s.Time, s.AttendeesCount, client.StateOf(s, cli.clock()))
	}
	return w.Flush()
}

func (cli *commandLine) show(ctx context.Context, args []string) error {
	fs := cli.flags("show")
	id := fs.Int64("id", 0, "Session id.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	s, err := c.Sessions.GetByID(ctx, *id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "%s (%s)\n", s.Title, s.CourseCode)
	fmt.Fprintf(cli.out, "When:      %s, %s\n", s.Date, s.Time)
	fmt.Fprintf(cli.out, "Where:     %s\n", s.Location)
	fmt.Fprintf(cli.out, "Host:      %s\n", s.HostName)
	if s.GroupName != nil {
		fmt.Fprintf(cli.out, "Group:     %s\n", *s.GroupName)
	}
	fmt.Fprintf(cli.out, "Attendees: %d\n", s.AttendeesCount)
	fmt.Fprintf(cli.out, "State:     %s\n", client.StateOf(s, cli.clock()))
	if code, ok := s.VisibleCode(c.Identity().User.ID); ok {
		fmt.Fprintf(cli.out, "Code:      %s\n", code)
	}
	if s.Description != "" {
		fmt.Fprintf(cli.out, "\n%s\n", s.Description)
	}
	return nil
}

func (cli *commandLine) rsvp(ctx context.Context, args []string) error {
	fs := cli.flags("rsvp")
	id := fs.Int64("id", 0, "Session id.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	s, err := c.Sessions.GetByID(ctx, *id)
	if err != nil {
		return err
	}

	flow := c.NewRSVPFlow(s)
	s, err = flow.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "RSVP'd to %q (%d attending)\n", s.Title, s.AttendeesCount)
	return nil
}

func (cli *commandLine) attend(ctx context.Context, args []string) error {
	fs := cli.flags("attend")
	id := fs.Int64("id", 0, "Session id.")
	code := fs.String("code", "", "The verification code shown by the host.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}

	dialog := c.NewAttendanceDialog(*id)
	dialog.Input(*code)
	res, err := dialog.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (+%d XP)\n", res.Detail, res.XPEarned)
	return nil
}

func (cli *commandLine) resources(ctx context.Context, args []string) error {
	fs := cli.flags("resources")
	id := fs.Int64("id", 0, "Session id.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	items, err := c.NewResourceList(*id).Refresh(ctx)
	if err != nil {
		return err
	}
	cli.printResources(items)
	return nil
}

func (cli *commandLine) printResources(items []client.Resource) {
	if len(items) == 0 {
		fmt.Fprintln(cli.out, "No resources yet")
		return
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tLINK\tADDED BY")
	for _, r := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Title, r.Link, r.AddedByName)
	}
	_ = w.Flush()
}

func (cli *commandLine) addResource(ctx context.Context, args []string) error {
	fs := cli.flags("add-resource")
	id := fs.Int64("id", 0, "Session id.")
	title := fs.String("title", "", "Resource title.")
	link := fs.String("link", "", "Absolute URL of the resource.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	list := c.NewResourceList(*id)
	if _, err := list.Add(ctx, client.ResourceInput{Title: *title, Link: *link}); err != nil {
		return err
	}
	cli.printResources(list.Items())
	return nil
}

func (cli *commandLine) deleteResource(ctx context.Context, args []string) error {
	fs := cli.flags("delete-resource")
	id := fs.Int64("id", 0, "Session id.")
	rid := fs.Int64("rid", 0, "Resource id.")
	yes := fs.Bool("yes", false, "Do not ask for confirmation.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}
	if err := requireID(fs, *rid); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	list := c.NewResourceList(*id)
	items, err := list.Refresh(ctx)
	if err != nil {
		return err
	}

	var target *client.Resource
	for i := range items {
		if items[i].ID == *rid {
			target = &items[i]
		}
	}
	if target == nil {
		return fmt.Errorf("%w: no resource %d in session %d", errInvalidInput, *rid, *id)
	}

	confirm := func(r client.Resource) bool {
		if *yes {
			return true
		}
		fmt.Fprintf(cli.out, "Delete %q? [y/N] ", r.Title)
		answer, _ := bufio.NewReader(cli.in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}

	err = list.Delete(ctx, *target, confirm)
	if errors.Is(err, client.ErrNotConfirmed) {
		fmt.Fprintln(cli.out, "Cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Resource deleted")
	return nil
}

func (cli *commandLine) chat(ctx context.Context, args []string) error {
	fs := cli.flags("chat")
	id := fs.Int64("id", 0, "Session id.")
	send := fs.String("send", "", "Post this message.")
	follow := fs.Bool("follow", false, "Keep polling for new messages until interrupted.")
	limit := fs.Duration("for", 0, "With -follow, stop after this long.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}

	if *send != "" {
		if _, err := c.Messages.SendSessionMessage(ctx, *id, *send); err != nil {
			return err
		}
	}

	if !*follow {
		msgs, err := c.Messages.GetSessionMessages(ctx, *id)
		if err != nil {
			return err
		}
		cli.printMessages(msgs, 0)
		return nil
	}

	if *limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *limit)
		defer cancel()
	}

	printed := 0
	sub := c.SubscribeChat(ctx, *id, cli.chatInterval, client.ChatHandlers{
		OnMessages: func(msgs []client.Message) {
			if len(msgs) < printed {
				printed = 0
			}
			cli.printMessages(msgs, printed)
			printed = len(msgs)
		},
		OnError: func(err error) {
			fmt.Fprintf(cli.out, "! %s\n", client.Notice(err))
		},
	})
	<-ctx.Done()
	sub.Close()
	return nil
}

// printMessages prints msgs[from:], showing the sender only on the first message of a run.
func (cli *commandLine) printMessages(msgs []client.Message, from int) {
	if len(msgs) == 0 && from == 0 {
		fmt.Fprintln(cli.out, "No messages yet")
		return
	}
	i := 0
	for _, run := range client.GroupRuns(msgs) {
		for j, m := range run.Messages {
			if i >= from {
				if j == 0 || i == from {
					fmt.Fprintf(cli.out, "%s:\n", run.Name)
				}
				fmt.Fprintf(cli.out, "  [%s] %s\n", m.CreatedAt.Local().Format("15:04"), m.Text)
			}
			i++
		}
	}
}

func (cli *commandLine) groups(ctx context.Context) error {
	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	list, err := c.Groups.GetAll(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSUBJECT\tMEMBERS\tJOINED")
	for _, g := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\n", g.ID, g.Name, g.Subject, g.MembersCount, g.IsMember)
	}
	return w.Flush()
}

func (cli *commandLine) join(ctx context.Context, args []string) error {
	fs := cli.flags("join")
	group := fs.Int64("group", 0, "Group id.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *group); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	earned, err := c.Groups.Join(ctx, *group)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Joined group %d (+%d XP)\n", *group, earned)
	return nil
}

func (cli *commandLine) leaderboard(ctx context.Context, args []string) error {
	fs := cli.flags("leaderboard")
	period := fs.String("period", "week", "week or all.")
	if err := parse(fs, args); err != nil {
		return err
	}

	c, err := cli.signedIn()
	if err != nil {
		return err
	}
	entries, err := c.Sessions.Leaderboard(ctx, *period)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSER\tLEVEL\tXP")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", e.Rank, e.Username, e.Level, e.XP)
	}
	return w.Flush()
}
