// campusctl is a terminal front end for the campus API. Each screen-level
// command consults the route guard before touching the network, mirroring
// how the web client gates its protected routes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/campusworks/campus/client"
	"github.com/campusworks/campus/internal/models"
)

const (
	viewLogin     = "/login"
	viewRegister  = "/register"
	viewDashboard = "/dashboard"
	viewCourses   = "/courses"
	viewUsers     = "/users"
	viewChat      = "/chat"
	viewProfile   = "/profile"
	viewUpload    = "/upload"
	viewDocuments = "/documents"
)

type app struct {
	controller *client.Controller
	guard      *client.Guard
	api        *client.API
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	baseURL := os.Getenv("CAMPUS_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:4000/api/v1"
	}
	stateDir := os.Getenv("CAMPUS_STATE_DIR")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".campusctl")
	}

	store, err := client.NewFileStore(stateDir)
	if err != nil {
		return err
	}

	controller := client.NewController(store)
	controller.Restore()

	guard := client.NewGuard(controller, viewLogin, viewDashboard)
	guard.Register(
		client.View{Path: viewLogin, PublicOnly: true},
		client.View{Path: viewRegister, PublicOnly: true},
		client.View{Path: viewDashboard, RequiresAuth: true},
		client.View{Path: viewCourses, RequiresAuth: true},
		client.View{Path: viewUsers, RequiresAuth: true},
		client.View{Path: viewChat, RequiresAuth: true},
		client.View{Path: viewProfile, RequiresAuth: true},
		client.View{Path: viewDocuments, RequiresAuth: true},
		client.View{Path: viewUpload, RequiresAuth: true, Roles: []models.UserRole{models.RoleTeacher}},
	)

	a := &app{
		controller: controller,
		guard:      guard,
		api:        client.NewAPI(baseURL, controller, nil),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	command, rest := args[0], args[1:]
	switch command {
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		return a.logout()
	case "whoami":
		return a.whoami()
	case "dashboard":
		return a.dashboard(ctx)
	case "courses":
		return a.courses(ctx, rest)
	case "users":
		return a.users(ctx, rest)
	case "chat":
		return a.chat(ctx, rest)
	case "profile":
		return a.profile(ctx, rest)
	case "upload":
		return a.upload(ctx, rest)
	case "documents":
		return a.documents(ctx, rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Println(`usage: campusctl <command> [flags]

commands:
  login       -email -password        sign in
  register    -name -email -role      create an account and sign in
  logout                              end the session
  whoami                              show the current session
  dashboard                           role-specific summary
  courses     [list|enroll|drop]      browse or change enrollment
  users       [-search]               list chat partners
  chat        [open|send|history]     direct messages
  profile     [show|update]           view or edit the profile
  upload      -course -file           upload course material (teachers)
  documents   [-course]               list course materials

environment:
  CAMPUS_API_URL    API base URL (default http://localhost:4000/api/v1)
  CAMPUS_STATE_DIR  session state directory (default ~/.campusctl)`)
}

// gate runs the route guard for a view and reports whether the caller may
// proceed, printing the redirect or denial exactly like the web client would
// surface it.
func (a *app) gate(view string) bool {
	decision := a.guard.Check(view)
	switch decision.Kind {
	case client.DecisionRender:
		return true
	case client.DecisionLoading:
		fmt.Println("session still loading, try again")
	case client.DecisionRedirectLogin:
		fmt.Printf("not signed in: log in first (would return to %s)\n", decision.From)
	case client.DecisionRedirectHome:
		fmt.Printf("already signed in: see %s\n", decision.Target)
	case client.DecisionDenied:
		fmt.Println("access denied: your role cannot open this view")
	}
	return false
}

func (a *app) login(ctx context.Context, args []string) error {
	if !a.gate(viewLogin) {
		return nil
	}

	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("-email required")
	}
	pass, err := resolvePassword(*password)
	if err != nil {
		return err
	}

	user, err := a.api.Login(ctx, *email, pass)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", user.Name, user.Role)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if !a.gate(viewRegister) {
		return nil
	}

	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	role := fs.String("role", string(models.RoleStudent), "account role: STUDENT or TEACHER")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return fmt.Errorf("-name and -email required")
	}
	accountRole := models.UserRole(*role)
	if !accountRole.Valid() {
		return fmt.Errorf("role must be STUDENT or TEACHER")
	}
	pass, err := resolvePassword(*password)
	if err != nil {
		return err
	}

	user, err := a.api.Register(ctx, *name, *email, pass, accountRole)
	if err != nil {
		return err
	}
	fmt.Printf("account created, signed in as %s (%s)\n", user.Name, user.Role)
	return nil
}

func (a *app) logout() error {
	if err := a.api.Logout(); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func (a *app) whoami() error {
	state, user := a.controller.Current()
	if user == nil {
		fmt.Printf("session: %s\n", state)
		return nil
	}
	fmt.Printf("session: %s\nuser: %s <%s>\nrole: %s\n", state, user.Name, user.Email, user.Role)
	return nil
}

func (a *app) dashboard(ctx context.Context) error {
	if !a.gate(viewDashboard) {
		return nil
	}

	raw, err := a.api.Dashboard(ctx)
	if err != nil {
		return err
	}
	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}

func (a *app) courses(ctx context.Context, args []string) error {
	if !a.gate(viewCourses) {
		return nil
	}

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		fs := flag.NewFlagSet("courses list", flag.ContinueOnError)
		search := fs.String("search", "", "substring match on title or instructor")
		category := fs.String("category", "", "category filter")
		enrolled := fs.Bool("enrolled", false, "only courses you are enrolled in")
		if err := fs.Parse(args); err != nil {
			return err
		}
		courses, err := a.api.Courses(ctx, *search, *category, *enrolled)
		if err != nil {
			return err
		}
		if len(courses) == 0 {
			fmt.Println("no courses found")
			return nil
		}
		for _, course := range courses {
			marker := " "
			if course.Enrolled {
				marker = "*"
			}
			fmt.Printf("%s %-36s  %-30s  %-16s  %s (%d enrolled)\n",
				marker, course.ID, course.Title, course.Category, course.TeacherName, course.EnrolledCount)
		}
		return nil
	case "enroll":
		if len(args) != 1 {
			return fmt.Errorf("usage: courses enroll <course-id>")
		}
		if err := a.api.Enroll(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("enrolled")
		return nil
	case "drop":
		if len(args) != 1 {
			return fmt.Errorf("usage: courses drop <course-id>")
		}
		if err := a.api.Drop(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("dropped")
		return nil
	default:
		return fmt.Errorf("unknown courses subcommand %q", sub)
	}
}

func (a *app) users(ctx context.Context, args []string) error {
	if !a.gate(viewUsers) {
		return nil
	}

	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	search := fs.String("search", "", "substring match on name or email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	users, err := a.api.Users(ctx, *search)
	if err != nil {
		return err
	}
	for _, u := range users {
		status := "offline"
		if u.Presence.Online {
			status = "online"
		}
		fmt.Printf("%-36s  %-24s  %-8s  %s\n", u.ID, u.Name, u.Role, status)
	}
	return nil
}

func (a *app) chat(ctx context.Context, args []string) error {
	if !a.gate(viewChat) {
		return nil
	}

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		conversations, err := a.api.Conversations(ctx)
		if err != nil {
			return err
		}
		if len(conversations) == 0 {
			fmt.Println("no conversations yet")
			return nil
		}
		for _, conv := range conversations {
			fmt.Printf("%-36s  %-24s  %d unread\n", conv.ID, conv.PartnerName, conv.UnreadCount)
		}
		return nil
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: chat open <user-id>")
		}
		conversation, err := a.api.OpenChat(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("conversation %s\n", conversation.ID)
		return nil
	case "send":
		if len(args) < 2 {
			return fmt.Errorf("usage: chat send <conversation-id> <message>")
		}
		message, err := a.api.SendMessage(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("sent %s\n", message.ID)
		return nil
	case "history":
		if len(args) != 1 {
			return fmt.Errorf("usage: chat history <conversation-id>")
		}
		messages, err := a.api.ChatMessages(ctx, args[0], time.Time{})
		if err != nil {
			return err
		}
		for _, msg := range messages {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.SenderID, msg.Body)
		}
		return nil
	default:
		return fmt.Errorf("unknown chat subcommand %q", sub)
	}
}

func (a *app) profile(ctx context.Context, args []string) error {
	if !a.gate(viewProfile) {
		return nil
	}

	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "show":
		user, err := a.api.Profile(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("name:     %s\nemail:    %s\nrole:     %s\nbio:      %s\nlocation: %s\nwebsite:  %s\n",
			user.Name, user.Email, user.Role, user.Bio, user.Location, user.Website)
		return nil
	case "update":
		fs := flag.NewFlagSet("profile update", flag.ContinueOnError)
		name := fs.String("name", "", "display name")
		bio := fs.String("bio", "", "short bio")
		phone := fs.String("phone", "", "phone number")
		location := fs.String("location", "", "location")
		website := fs.String("website", "", "website URL")
		avatar := fs.String("avatar", "", "avatar URL")
		if err := fs.Parse(args); err != nil {
			return err
		}

		current, err := a.api.Profile(ctx)
		if err != nil {
			return err
		}
		req := models.UpdateProfileRequest{
			Name:      pick(*name, current.Name),
			Bio:       pick(*bio, current.Bio),
			Phone:     pick(*phone, current.Phone),
			Location:  pick(*location, current.Location),
			Website:   pick(*website, current.Website),
			AvatarURL: pick(*avatar, current.AvatarURL),
		}
		updated, err := a.api.UpdateProfile(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("profile updated for %s\n", updated.Name)
		return nil
	default:
		return fmt.Errorf("unknown profile subcommand %q", sub)
	}
}

func (a *app) upload(ctx context.Context, args []string) error {
	if !a.gate(viewUpload) {
		return nil
	}

	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	courseID := fs.String("course", "", "course the material belongs to")
	path := fs.String("file", "", "file to upload")
	mimeType := fs.String("type", "", "MIME type (detected from extension when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *courseID == "" || *path == "" {
		return fmt.Errorf("-course and -file required")
	}

	file, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	doc, err := a.api.UploadDocument(ctx, *courseID, filepath.Base(*path), *mimeType, file)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s (%d bytes) as %s\n", doc.FileName, doc.SizeBytes, doc.ID)
	return nil
}

func (a *app) documents(ctx context.Context, args []string) error {
	if !a.gate(viewDocuments) {
		return nil
	}

	fs := flag.NewFlagSet("documents", flag.ContinueOnError)
	courseID := fs.String("course", "", "filter by course")
	if err := fs.Parse(args); err != nil {
		return err
	}

	docs, err := a.api.Documents(ctx, *courseID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("no documents")
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%-36s  %-40s  %8d bytes  %s\n", doc.ID, doc.FileName, doc.SizeBytes, doc.MIMEType)
	}
	return nil
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func resolvePassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Print("password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password required")
	}
	return string(raw), nil
}
