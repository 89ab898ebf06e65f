package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rongwang/vaccine-scheduler/internal/models"
	"github.com/rongwang/vaccine-scheduler/internal/repository"
	"github.com/rongwang/vaccine-scheduler/internal/service"
)

// CLI is the line-oriented command dispatcher. It owns the session for the
// running process and translates commands into service calls. Domain errors
// are reported and the loop continues; store faults abort the loop so the
// process can exit with a diagnostic.
type CLI struct {
	svc     service.Service
	in      io.Reader
	out     io.Writer
	session Session
}

// New creates a CLI reading commands from in and writing responses to out.
func New(svc service.Service, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		svc: svc,
		in:  in,
		out: out,
	}
}

// Session returns the current session state.
func (c *CLI) Session() *Session {
	return &c.session
}

// Run reads commands until quit or EOF. A non-nil return means the data
// store failed; all other errors are reported inline and the loop continues.
func (c *CLI) Run(ctx context.Context) error {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Welcome to the Vaccine Reservation Scheduling Application!")
	c.printHelp()

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}

		// Operation names are case-insensitive; arguments are not
		var err error
		switch strings.ToLower(tokens[0]) {
		case "create_patient":
			err = c.createPatient(ctx, tokens)
		case "create_caregiver":
			err = c.createCaregiver(ctx, tokens)
		case "login_patient":
			err = c.login(ctx, models.RolePatient, tokens)
		case "login_caregiver":
			err = c.login(ctx, models.RoleCaregiver, tokens)
		case "search_caregiver_schedule":
			err = c.searchCaregiverSchedule(ctx, tokens)
		case "reserve":
			err = c.reserve(ctx, tokens)
		case "upload_availability":
			err = c.uploadAvailability(ctx, tokens)
		case "cancel":
			err = c.cancel(ctx, tokens)
		case "add_doses":
			err = c.addDoses(ctx, tokens)
		case "show_appointments":
			err = c.showAppointments(ctx, tokens)
		case "logout":
			c.logout(tokens)
		case "quit":
			fmt.Fprintln(c.out, "Bye!")
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid operation name!")
		}

		if err != nil {
			return err
		}
	}
}

func (c *CLI) createPatient(ctx context.Context, tokens []string) error {
	if len(tokens) != 3 {
		fmt.Fprintln(c.out, "Failed to create user.")
		return nil
	}

	err := c.svc.RegisterPatient(ctx, tokens[1], tokens[2])
	switch {
	case err == nil:
		fmt.Fprintln(c.out, "Created user", tokens[1])
	case errors.Is(err, repository.ErrDuplicateUsername):
		fmt.Fprintln(c.out, "Username taken, try again!")
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrInvalidPassword):
		fmt.Fprintln(c.out, "Failed to create user.")
	default:
		return err
	}
	return nil
}

func (c *CLI) createCaregiver(ctx context.Context, tokens []string) error {
	if len(tokens) != 3 {
		fmt.Fprintln(c.out, "Failed to create user.")
		return nil
	}

	err := c.svc.RegisterCaregiver(ctx, tokens[1], tokens[2])
	switch {
	case err == nil:
		fmt.Fprintln(c.out, "Created user", tokens[1])
	case errors.Is(err, repository.ErrDuplicateUsername):
		fmt.Fprintln(c.out, "Username taken, try again!")
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrInvalidPassword):
		fmt.Fprintln(c.out, "Failed to create user.")
	default:
		return err
	}
	return nil
}

func (c *CLI) login(ctx context.Context, role models.Role, tokens []string) error {
	if c.session.Active() {
		fmt.Fprintln(c.out, "User already logged in.")
		return nil
	}
	if len(tokens) != 3 {
		fmt.Fprintln(c.out, "Login failed.")
		return nil
	}

	result, err := c.svc.Login(ctx, role, tokens[1], tokens[2])
	switch {
	case err == nil:
		c.session.login(role, result.Username)
		fmt.Fprintln(c.out, "Logged in as:", result.Username)
	case errors.Is(err, service.ErrInvalidCredentials):
		fmt.Fprintln(c.out, "Login failed.")
	default:
		return err
	}
	return nil
}

func (c *CLI) searchCaregiverSchedule(ctx context.Context, tokens []string) error {
	if !c.session.Active() {
		fmt.Fprintln(c.out, "Please login first!")
		return nil
	}
	if len(tokens) != 2 {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}

	date, err := service.ParseDate(tokens[1])
	if err != nil {
		fmt.Fprintln(c.out, "Please enter a valid date!")
		return nil
	}

	schedule, err := c.svc.SearchSchedule(ctx, date)
	if err != nil {
		return err
	}

	for _, caregiver := range schedule.Caregivers {
		fmt.Fprintln(c.out, "Available Caregiver:", caregiver)
	}
	for _, vaccine := range schedule.Vaccines {
		fmt.Fprintf(c.out, "name: %s, available_doses: %d\n", vaccine.Name, vaccine.Doses)
	}
	return nil
}

func (c *CLI) reserve(ctx context.Context, tokens []string) error {
	if c.session.Role() == models.RoleCaregiver {
		fmt.Fprintln(c.out, "Please login as a patient!")
		return nil
	}
	if !c.session.Active() {
		fmt.Fprintln(c.out, "Please login as a patient first!")
		return nil
	}
	if len(tokens) != 3 {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}

	date, err := service.ParseDate(tokens[1])
	if err != nil {
		fmt.Fprintln(c.out, "Please enter a valid date!")
		return nil
	}

	appointment, err := c.svc.Reserve(ctx, c.session.Username(), date, tokens[2])
	switch {
	case err == nil:
		fmt.Fprintf(c.out, "Appointment ID: %d, Caregiver username: %s\n",
			appointment.ID, appointment.CaregiverUsername)
	case errors.Is(err, repository.ErrNoCaregiverAvailable):
		fmt.Fprintln(c.out, "No Caregiver is available!")
	case errors.Is(err, repository.ErrInsufficientDoses):
		fmt.Fprintln(c.out, "Not enough available doses!")
	case errors.Is(err, repository.ErrSlotConflict):
		fmt.Fprintln(c.out, "Slot was taken by another booking, please try again!")
	default:
		return err
	}
	return nil
}

func (c *CLI) uploadAvailability(ctx context.Context, tokens []string) error {
	if c.session.Role() != models.RoleCaregiver {
		fmt.Fprintln(c.out, "Please login as a caregiver first!")
		return nil
	}
	if len(tokens) != 2 {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}

	date, err := service.ParseDate(tokens[1])
	if err != nil {
		fmt.Fprintln(c.out, "Please enter a valid date!")
		return nil
	}

	err = c.svc.PublishAvailability(ctx, c.session.Username(), date)
	switch {
	case err == nil:
		fmt.Fprintln(c.out, "Availability uploaded!")
	case errors.Is(err, repository.ErrDuplicateSlot):
		fmt.Fprintln(c.out, "Availability already uploaded for this date!")
	default:
		return err
	}
	return nil
}

func (c *CLI) cancel(ctx context.Context, tokens []string) error {
	if !c.session.Active() {
		fmt.Fprintln(c.out, "Please login first!")
		return nil
	}
	if len(tokens) != 2 {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}

	appointmentID, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}

	err = c.svc.Cancel(ctx, c.session.Role(), c.session.Username(), appointmentID)
	switch {
	case err == nil:
		fmt.Fprintf(c.out, "Appointment %d canceled successfully.\n", appointmentID)
	case errors.Is(err, repository.ErrAppointmentNotFound):
		fmt.Fprintf(c.out, "Appointment not found for this %s.\n", c.session.Role())
	default:
		return err
	}
	return nil
}

func (c *CLI) addDoses(ctx context.Context, tokens []string) error {
	if c.session.Role() != models.RoleCaregiver {
		fmt.Fprintln(c.out, "Please login as a caregiver first!")
		return nil
	}
	if len(tokens) != 3 {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}

	amount, err := strconv.Atoi(tokens[2])
	if err != nil {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}

	err = c.svc.AddDoses(ctx, tokens[1], amount)
	switch {
	case err == nil:
		fmt.Fprintln(c.out, "Doses updated!")
	case errors.Is(err, service.ErrInvalidAmount):
		fmt.Fprintln(c.out, "Please try again!")
	default:
		return err
	}
	return nil
}

func (c *CLI) showAppointments(ctx context.Context, tokens []string) error {
	if len(tokens) != 1 {
		fmt.Fprintln(c.out, "Please try again!")
		return nil
	}
	if !c.session.Active() {
		fmt.Fprintln(c.out, "Please login first!")
		return nil
	}

	appointments, err := c.svc.ListAppointments(ctx, c.session.Role(), c.session.Username())
	if err != nil {
		return err
	}

	if len(appointments) == 0 {
		fmt.Fprintf(c.out, "No scheduled appointments for this %s.\n", c.session.Role())
		return nil
	}

	for _, a := range appointments {
		other := a.CaregiverUsername
		if c.session.Role() == models.RoleCaregiver {
			other = a.PatientUsername
		}
		fmt.Fprintf(c.out, "%d %s %s %s\n",
			a.ID, a.VaccineName, a.Time.Format(service.DateLayout), other)
	}
	return nil
}

func (c *CLI) logout(tokens []string) {
	if !c.session.Active() {
		fmt.Fprintln(c.out, "Please login first!")
		return
	}
	if len(tokens) != 1 {
		fmt.Fprintln(c.out, "Please try again!")
		return
	}

	c.session.logout()
	fmt.Fprintln(c.out, "Successfully logged out!")
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, " *** Please enter one of the following commands *** ")
	fmt.Fprintln(c.out, "> create_patient <username> <password>")
	fmt.Fprintln(c.out, "> create_caregiver <username> <password>")
	fmt.Fprintln(c.out, "> login_patient <username> <password>")
	fmt.Fprintln(c.out, "> login_caregiver <username> <password>")
	fmt.Fprintln(c.out, "> search_caregiver_schedule <date>")
	fmt.Fprintln(c.out, "> reserve <date> <vaccine>")
	fmt.Fprintln(c.out, "> upload_availability <date>")
	fmt.Fprintln(c.out, "> cancel <appointment_id>")
	fmt.Fprintln(c.out, "> add_doses <vaccine> <number>")
	fmt.Fprintln(c.out, "> show_appointments")
	fmt.Fprintln(c.out, "> logout")
	fmt.Fprintln(c.out, "> quit")
	fmt.Fprintln(c.out)
}
