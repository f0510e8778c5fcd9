// Package console is a line-oriented front end: each input line is one user action
// forwarded to the cart engine, and the outcome is written back as text.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/models"
)

type handlerFunc func(c *Console, args []string) error

type route struct {
	usage   string
	handler handlerFunc
}

var errQuit = errors.New("quit")

type Console struct {
	engine  *cart.Engine
	session *cart.Session
	out     io.Writer
	routes  map[string]route
	order   []string
}

func New(engine *cart.Engine, out io.Writer) *Console {
	c := &Console{
		engine:  engine,
		session: cart.NewSession(),
		out:     out,
		routes:  make(map[string]route),
	}
	c.setupRoutes()
	return c
}

func (c *Console) setupRoutes() {
	c.handle("help", "help", handleHelp)
	c.handle("catalog", "catalog [category|All] [style|All]", handleCatalog)
	c.handle("find", "find <text>", handleFind)
	c.handle("categories", "categories", handleCategories)
	c.handle("styles", "styles", handleStyles)
	c.handle("signup", "signup <username> <password> <email>", handleSignUp)
	c.handle("login", "login <username> <password>", handleLogin)
	c.handle("logout", "logout", handleLogout)
	c.handle("add", "add <product>", handleAdd)
	c.handle("qty", "qty <delta> <product>", handleQuantity)
	c.handle("remove", "remove <product>", handleRemove)
	c.handle("cart", "cart", handleCart)
	c.handle("coupon", "coupon <code>", handleCoupon)
	c.handle("pay", "pay <Cash|Card|UPI>", handlePay)
	c.handle("checkout", "checkout [Cash|Card|UPI]", handleCheckout)
	c.handle("wish", "wish <product>", handleWish)
	c.handle("unwish", "unwish <product>", handleUnwish)
	c.handle("review", "review <product>: <text>", handleReview)
	c.handle("reviews", "reviews <product>", handleReviews)
	c.handle("profile", "profile", handleProfile)
	c.handle("quit", "quit", func(*Console, []string) error { return errQuit })
}

func (c *Console) handle(name, usage string, h handlerFunc) {
	c.routes[name] = route{usage: usage, handler: h}
	c.order = append(c.order, name)
}

// Run reads commands until EOF or quit.
func (c *Console) Run(in io.Reader) error {
	c.printf("Welcome to MarketPlace Express. Type 'help' for commands.\n")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := c.Exec(scanner.Text()); errors.Is(err, errQuit) {
			c.printf("Goodbye.\n")
			return nil
		}
	}
	return scanner.Err()
}

// Exec runs a single command line. User-facing failures are printed, not returned.
func (c *Console) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	r, ok := c.routes[strings.ToLower(fields[0])]
	if !ok {
		c.printf("Unknown command %q. Type 'help' for commands.\n", fields[0])
		return nil
	}

	err := r.handler(c, fields[1:])
	switch {
	case err == nil:
	case errors.Is(err, errQuit):
		return err
	case errors.Is(err, errUsage):
		c.printf("Usage: %s\n", r.usage)
	default:
		c.printf("Error: %s\n", message(err))
	}
	return nil
}

var errUsage = errors.New("usage")

func message(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingField):
		return "All fields must be filled."
	case errors.Is(err, models.ErrInvalidEmail):
		return "Invalid email format. Please enter a valid email address."
	case errors.Is(err, models.ErrDuplicateUsername):
		return "Username already exists. Please choose another."
	case errors.Is(err, models.ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, models.ErrTooManyAttempts):
		return "Too many login attempts. Please wait before trying again."
	case errors.Is(err, models.ErrNotAuthenticated):
		return "Please log in first."
	case errors.Is(err, models.ErrUnknownProduct):
		return "No such product."
	case errors.Is(err, models.ErrInvalidCoupon):
		return "The entered coupon code is not valid."
	case errors.Is(err, models.ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, models.ErrQuantityTooLarge):
		return "That quantity is too large."
	case errors.Is(err, models.ErrInvalidPaymentMethod):
		return "Please select a payment method: Cash, Card or UPI."
	case errors.Is(err, models.ErrPersistenceUnavailable):
		return "Could not save your data. Please try again."
	default:
		return err.Error()
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func handleHelp(c *Console, _ []string) error {
	c.printf("Commands:\n")
	for _, name := range c.order {
		c.printf("  %s\n", c.routes[name].usage)
	}
	return nil
}

func handleCatalog(c *Console, args []string) error {
	if len(args) > 2 {
		return errUsage
	}
	f := catalog.Filter{}
	if len(args) > 0 {
		f.Category = args[0]
	}
	if len(args) > 1 {
		f.Style = args[1]
	}
	c.printProducts(c.engine.Catalog().Search(f))
	return nil
}

func handleFind(c *Console, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	c.printProducts(c.engine.Catalog().Search(catalog.Filter{Query: strings.Join(args, " ")}))
	return nil
}

func (c *Console) printProducts(products []models.Product) {
	if len(products) == 0 {
		c.printf("No items match your search/filter.\n")
		return
	}
	for _, p := range products {
		c.printf("%-18s $%7s  %-7s %-6s %s\n", p.Name, p.Price.StringFixed(2), p.Category, p.Style, p.Description)
	}
}

func handleCategories(c *Console, _ []string) error {
	c.printf("%s\n", strings.Join(append([]string{catalog.All}, c.engine.Catalog().Categories()...), ", "))
	return nil
}

func handleStyles(c *Console, _ []string) error {
	c.printf("%s\n", strings.Join(append([]string{catalog.All}, c.engine.Catalog().Styles()...), ", "))
	return nil
}

func handleSignUp(c *Console, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	account, err := c.engine.SignUp(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	c.printf("Sign-up successful for %s! You can now log in.\n", account.Username)
	return nil
}

func handleLogin(c *Console, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	account, err := c.engine.Login(c.session, args[0], args[1])
	if err != nil {
		return err
	}
	c.printf("Welcome, %s!\n", account.Username)
	return nil
}

func handleLogout(c *Console, _ []string) error {
	c.engine.Logout(c.session)
	c.printf("You have been successfully logged out.\n")
	return nil
}

func productArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", errUsage
	}
	return strings.Join(args, " "), nil
}

func handleAdd(c *Console, args []string) error {
	name, err := productArg(args)
	if err != nil {
		return err
	}
	if err := c.engine.AddItem(c.session, name); err != nil {
		return err
	}
	c.printf("Added %s to your cart.\n", name)
	return nil
}

func handleQuantity(c *Console, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	delta, err := strconv.Atoi(args[0])
	if err != nil {
		return errUsage
	}
	name, _ := productArg(args[1:])
	if err := c.engine.ChangeQuantity(c.session, name, delta); err != nil {
		return err
	}
	c.printf("%s: x%d\n", name, c.session.Quantity(name))
	return nil
}

func handleRemove(c *Console, args []string) error {
	name, err := productArg(args)
	if err != nil {
		return err
	}
	if err := c.engine.RemoveItem(c.session, name); err != nil {
		return err
	}
	c.printf("Removed %s from your cart.\n", name)
	return nil
}

func handleCart(c *Console, _ []string) error {
	lines := c.engine.Lines(c.session)
	if len(lines) == 0 {
		c.printf("Your cart is empty.\n")
		return nil
	}
	for _, l := range lines {
		c.printf("- %s (x%d): $%s\n", l.Product.Name, l.Quantity, l.LineTotal.StringFixed(2))
	}
	c.printTotals(c.engine.ComputeTotals(c.session))
	return nil
}

func (c *Console) printTotals(t models.Totals) {
	c.printf("Subtotal: $%s\n", t.Subtotal.StringFixed(2))
	if t.Discount.IsPositive() {
		c.printf("Discount: -$%s\n", t.Discount.StringFixed(2))
	}
	c.printf("Total: $%s\n", t.Total.StringFixed(2))
}

func handleCoupon(c *Console, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := c.engine.ApplyCoupon(c.session, args[0]); err != nil {
		return err
	}
	c.printf("Coupon applied!\n")
	return nil
}

func handlePay(c *Console, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := c.engine.SelectPaymentMethod(c.session, args[0]); err != nil {
		return err
	}
	method, _ := c.session.PaymentMethod()
	c.printf("Selected Payment Method: %s\n", method)
	return nil
}

func handleCheckout(c *Console, args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	if len(args) == 1 {
		if err := handlePay(c, args); err != nil {
			return err
		}
	}
	order, err := c.engine.Checkout(c.session)
	if err != nil {
		return err
	}
	c.printf("Payment successful! Your order %s has been placed. Total: $%s\n", order.ID, order.Total.StringFixed(2))
	return nil
}

func handleWish(c *Console, args []string) error {
	name, err := productArg(args)
	if err != nil {
		return err
	}
	if err := c.engine.AddToWishlist(c.session, name); err != nil {
		return err
	}
	c.printf("%s is in your wishlist.\n", name)
	return nil
}

func handleUnwish(c *Console, args []string) error {
	name, err := productArg(args)
	if err != nil {
		return err
	}
	if err := c.engine.RemoveFromWishlist(c.session, name); err != nil {
		return err
	}
	c.printf("%s is not in your wishlist.\n", name)
	return nil
}

func handleReview(c *Console, args []string) error {
	name, text, ok := strings.Cut(strings.Join(args, " "), ":")
	if !ok || strings.TrimSpace(name) == "" {
		return errUsage
	}
	if _, err := c.engine.WriteReview(c.session, strings.TrimSpace(name), text); err != nil {
		return err
	}
	c.printf("Your review has been submitted!\n")
	return nil
}

func handleReviews(c *Console, args []string) error {
	name, err := productArg(args)
	if err != nil {
		return err
	}
	reviews, err := c.engine.Reviews(name)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		c.printf("No reviews for %s yet.\n", name)
		return nil
	}
	for _, r := range reviews {
		c.printf("%s (%s): %s\n", r.Username, r.CreatedAt.Format("2006-01-02"), r.Text)
	}
	return nil
}

func handleProfile(c *Console, _ []string) error {
	account, summary, err := c.engine.Profile(c.session)
	if err != nil {
		return err
	}
	c.printf("Username: %s\nEmail: %s\n", account.Username, account.Email)
	c.printf("Orders: %d (lifetime $%s)\n", summary.OrderCount, summary.TotalSpent.StringFixed(2))

	if len(account.Wishlist) == 0 {
		c.printf("Your wishlist is empty.\n")
	} else {
		c.printf("Wishlist: %s\n", strings.Join(account.Wishlist, ", "))
	}

	if len(account.Orders) == 0 {
		c.printf("You have no past orders.\n")
		return nil
	}
	for i := len(account.Orders) - 1; i >= 0; i-- {
		o := account.Orders[i]
		if o.Payment != "" {
			c.printf("Order %s (%s): $%s, paid by %s\n", o.ID, o.CreatedAt.Format("2006-01-02 15:04:05"), o.Total.StringFixed(2), o.Payment)
			continue
		}
		c.printf("Order %s (%s): $%s\n", o.ID, o.CreatedAt.Format("2006-01-02 15:04:05"), o.Total.StringFixed(2))
	}
	return nil
}
