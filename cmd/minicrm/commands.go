package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/vladislavdragonenkov/minicrm/internal/app"
	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/store"
)

var errNotSignedIn = errors.New("not signed in, run: minicrm login -email <email> -password <password>")

const usage = `usage: minicrm [command] [flags]

Without a command minicrm opens the interactive shell.

commands:
  login   -email -password           sign in and keep the session
  signup  -email -password           register and keep the session
  logout                             drop the session
  list                               print all orders
  show    -id                        print one order
  add     -customer -days -tjm -tva  create an order
  delete  -id                        delete an order
`

// runCommand выполняет одну команду через тот же OrdersStore, что и TUI.
func runCommand(ctx context.Context, client *app.Client, args []string, out io.Writer) error {
	name, rest := args[0], args[1:]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch name {
	case "login", "signup":
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		creds := domain.Credentials{Email: *email, Password: *password}
		signIn := client.Auth.SignIn
		if name == "signup" {
			signIn = client.Auth.SignUp
		}
		user, err := signIn(ctx, creds)
		if err != nil {
			return errors.New(domain.ErrorMessage(err))
		}
		_, err = fmt.Fprintf(out, "signed in as %s\n", user.Email)
		return err

	case "logout":
		client.Auth.Logout()
		_, err := fmt.Fprintln(out, "signed out")
		return err

	case "list":
		if err := requireSession(client); err != nil {
			return err
		}
		if err := wait(ctx, client.Store, client.Store.LoadAll(ctx)); err != nil {
			return err
		}
		return printOrders(out, client.Store.State())

	case "show":
		id := fs.Int64("id", 0, "order id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := requireSession(client); err != nil {
			return err
		}
		if err := wait(ctx, client.Store, client.Store.GetByID(ctx, *id)); err != nil {
			return err
		}
		state := client.Store.State()
		if state.SelectedOrder == nil {
			return domain.ErrOrderNotFound
		}
		return printOrders(out, store.OrdersState{Orders: []domain.Order{*state.SelectedOrder}})

	case "add":
		in := domain.CreateOrder{}
		fs.StringVar(&in.Customer, "customer", "", "customer name")
		fs.IntVar(&in.NbDays, "days", 0, "number of days")
		fs.Float64Var(&in.Tjm, "tjm", 0, "daily rate")
		fs.Float64Var(&in.TauxTva, "tva", 20, "VAT percent")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := requireSession(client); err != nil {
			return err
		}
		if err := wait(ctx, client.Store, client.Store.Create(ctx, in, "")); err != nil {
			return err
		}
		created, ok := newest(client.Store.State().Orders)
		if !ok {
			return errors.New("created order is missing from state")
		}
		_, err := fmt.Fprintf(out, "order #%d created, total HT %.2f, TTC %.2f\n", created.ID, created.TotalHt, created.TotalTtc)
		return err

	case "delete":
		id := fs.Int64("id", 0, "order id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := requireSession(client); err != nil {
			return err
		}
		if err := wait(ctx, client.Store, client.Store.Delete(ctx, *id)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "order #%d deleted\n", *id)
		return err

	case "help", "-h", "--help":
		_, err := io.WriteString(out, usage)
		return err

	default:
		return fmt.Errorf("unknown command %q\n\n%s", name, usage)
	}
}

func requireSession(client *app.Client) error {
	if !client.Session.IsAuthenticated() {
		return errNotSignedIn
	}
	return nil
}

// wait ждёт завершения вызова store и возвращает сообщение об ошибке из состояния.
func wait(ctx context.Context, orders *store.OrdersStore, call *store.Call) error {
	if err := call.Wait(ctx); err != nil {
		return errors.New(domain.ErrorMessage(err))
	}
	if msg := orders.State().Error; msg != "" {
		return errors.New(msg)
	}
	return nil
}

func newest(orders []domain.Order) (domain.Order, bool) {
	var latest domain.Order
	for _, order := range orders {
		if order.ID > latest.ID {
			latest = order
		}
	}
	return latest, latest.ID > 0
}

func printOrders(out io.Writer, state store.OrdersState) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCUSTOMER\tDAYS\tTJM\tVAT %\tTOTAL HT\tTOTAL TTC")
	for _, order := range state.Orders {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			order.ID, order.Customer, order.NbDays, order.Tjm, order.TauxTva, order.TotalHt, order.TotalTtc)
	}
	_, _ = fmt.Fprintf(w, "\t%d orders\t\t\t\t%.2f\t%.2f\n", state.OrdersCount(), state.TotalRevenueHt(), state.TotalRevenue())
	return w.Flush()
}
