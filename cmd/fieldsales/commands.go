package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/utafrali/fieldsales/internal/domain"
	"github.com/utafrali/fieldsales/internal/guard"
	"github.com/utafrali/fieldsales/internal/session"
	"github.com/utafrali/fieldsales/internal/visit"
)

// screenRoles are the role requirements of the console screens.
var screenRoles = map[string][]domain.Role{
	"/dashboard": nil,
	"/admin":     {domain.RoleAdmin},
	"/manager":   {domain.RoleManager},
	"/agent":     {domain.RoleAgent},
}

func loginCommand(fs *pflag.FlagSet) func(context.Context, *env) error {
	phone := fs.String("phone", "", "account phone number")
	password := fs.String("password", "", "account password (or FIELDSALES_PASSWORD)")

	return func(ctx context.Context, e *env) error {
		pw := *password
		if pw == "" {
			pw = os.Getenv("FIELDSALES_PASSWORD")
		}
		user, err := e.app.Session().Login(ctx, *phone, pw)
		if err != nil {
			return errSilent
		}
		if user != nil {
			fmt.Fprintf(e.stdout, "Signed in as %s (%s), landing on %s\n", user.DisplayName(), user.Role, guard.LandingPage(user.Role))
		}
		return nil
	}
}

func logoutCommand(*pflag.FlagSet) func(context.Context, *env) error {
	return func(ctx context.Context, e *env) error {
		e.app.Session().Logout(ctx)
		return nil
	}
}

type whoamiOutput struct {
	State   session.State `json:"state"`
	User    *domain.User  `json:"user,omitempty"`
	Landing string        `json:"landing,omitempty"`
}

func whoamiCommand(fs *pflag.FlagSet) func(context.Context, *env) error {
	asJSON := fs.Bool("json", false, "print the session as JSON")

	return func(_ context.Context, e *env) error {
		snap := e.app.Session().Snapshot()
		if *asJSON {
			out := whoamiOutput{State: snap.State, User: snap.User}
			if snap.IsAuthenticated {
				out.Landing = guard.LandingPage(snap.Role())
			}
			enc := json.NewEncoder(e.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		if !snap.IsAuthenticated {
			fmt.Fprintln(e.stdout, "Not signed in")
			return errSilent
		}
		if snap.User == nil {
			fmt.Fprintln(e.stdout, "Signed in; the account details are not known yet")
			return nil
		}
		fmt.Fprintf(e.stdout, "%s\nphone: %s\nrole:  %s\n", snap.User.DisplayName(), snap.User.Phone, snap.User.Role)
		return nil
	}
}

func routeCommand(fs *pflag.FlagSet) func(context.Context, *env) error {
	path := fs.String("path", "/dashboard", "console screen to open")
	roles := fs.StringSlice("roles", nil, "override the roles the screen requires")

	return func(_ context.Context, e *env) error {
		required, known := screenRoles[*path]
		if fs.Changed("roles") {
			required = required[:0:0]
			for _, name := range *roles {
				r, ok := domain.ParseRole(name)
				if !ok {
					return fmt.Errorf("unknown role %q", name)
				}
				required = append(required, r)
			}
		} else if !known {
			return fmt.Errorf("unknown screen %q; pass --roles to describe it", *path)
		}

		snap := e.app.Session().Snapshot()
		d := guard.Decide(guard.Input{
			Loading:         snap.IsLoading,
			IsAuthenticated: snap.IsAuthenticated,
			HasToken:        snap.Token != "",
			Role:            snap.Role(),
		}, required...)

		switch {
		case d.Kind == guard.Redirect:
			fmt.Fprintf(e.stdout, "redirect %s\n", d.Location)
		case *path == "/dashboard" && d.Content == guard.Protected:
			fmt.Fprintf(e.stdout, "redirect %s\n", guard.LandingPage(snap.Role()))
		default:
			fmt.Fprintf(e.stdout, "render %s\n", d.Content)
		}
		return nil
	}
}

func checkinCommand(fs *pflag.FlagSet) func(context.Context, *env) error {
	kind := fs.String("kind", string(domain.VisitIndividual), "visit kind: individual or customer")
	shopID := fs.Int64("shop-id", 0, "registered shop ID")
	shopName := fs.String("shop-name", "", "name of a shop that is not registered yet")
	shopAddress := fs.String("shop-address", "", "address of a shop that is not registered yet")
	lat := fs.Float64("lat", 0, "latitude of the visit")
	lng := fs.Float64("lng", 0, "longitude of the visit")
	answersPath := fs.String("answers", "", "questionnaire answers file (.json or .yaml)")
	photos := fs.StringArray("photo", nil, "photo file; repeat for more than one")
	notes := fs.String("notes", "", "free-text notes")
	brandID := fs.Int64("brand-id", 0, "brand ID")
	categoryID := fs.Int64("category-id", 0, "category ID")
	productID := fs.Int64("product-id", 0, "product ID")

	return func(ctx context.Context, e *env) error {
		k, err := domain.ParseVisitKind(*kind)
		if err != nil {
			return err
		}
		sub := &domain.VisitSubmission{Kind: k, Notes: *notes}

		if fs.Changed("shop-id") || *shopName != "" {
			sub.Shop = &domain.ShopRef{ID: *shopID, Name: *shopName, Address: *shopAddress}
		}
		if fs.Changed("lat") != fs.Changed("lng") {
			return errors.New("--lat and --lng must be given together")
		}
		if fs.Changed("lat") {
			sub.Location = &domain.Location{Lat: *lat, Lng: *lng}
		}
		if fs.Changed("brand-id") {
			sub.BrandID = brandID
		}
		if fs.Changed("category-id") {
			sub.CategoryID = categoryID
		}
		if fs.Changed("product-id") {
			sub.ProductID = productID
		}

		if *answersPath != "" {
			sub.Answers, err = visit.LoadAnswers(*answersPath)
			if err != nil {
				return err
			}
		}
		for _, p := range *photos {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read photo: %w", err)
			}
			sub.Photos = append(sub.Photos, domain.Photo{Name: filepath.Base(p), Data: data})
		}

		// An empty token is refused by the pipeline after validation.
		token := e.app.Session().Snapshot().Token

		var res *domain.VisitResult
		err = visit.RunWithDeadline(ctx, e.cfg.SubmitSafetyTimeout,
			func(ctx context.Context) error {
				var err error
				res, err = e.app.Pipeline().Submit(ctx, token, sub)
				return err
			},
			func() {
				fmt.Fprintln(e.stderr, "Still submitting, the server is slow to answer...")
			},
		)
		if err != nil {
			return err
		}

		fmt.Fprintf(e.stdout, "Visit %d recorded\n", res.VisitID)
		if res.VisitResponseID != nil {
			fmt.Fprintf(e.stdout, "Questionnaire response %d\n", *res.VisitResponseID)
		}
		return nil
	}
}

func serveCommand(*pflag.FlagSet) func(context.Context, *env) error {
	// serve is run by the App itself.
	return nil
}
