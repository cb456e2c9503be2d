package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jwalitptl/odontocare-api/internal/client"
	"github.com/jwalitptl/odontocare-api/internal/model"
)

type app struct {
	cfg    client.Config
	debug  bool
	logger *zap.Logger
	api    *client.Client
}

func main() {
	a := &app{}
	if err := envconfig.Process("odontocare", &a.cfg); err != nil {
		fmt.Fprintln(os.Stderr, "invalid environment:", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "odontocare",
		Short:         "Command line client for the OdontoCare API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.cfg.BaseURL, "base-url", a.cfg.BaseURL, "API base URL (ODONTOCARE_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&a.cfg.Token, "token", a.cfg.Token, "bearer token (ODONTOCARE_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "request timeout (ODONTOCARE_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "development logging")

	rootCmd.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.usersCmd(),
		a.patientsCmd(),
		a.centersCmd(),
		a.doctorsCmd(),
		a.appointmentsCmd(),
		a.importCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) setup() error {
	var err error
	if a.debug {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.api = client.New(a.cfg)
	a.logger.Debug("client configured", zap.String("base_url", a.cfg.BaseURL), zap.Duration("timeout", a.cfg.Timeout))
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func (a *app) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.api.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			return printJSON(cmd, tok)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var req model.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user (anonymous only for the first admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.api.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "username")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.Role, "role", "admin", "admin, doctor, receptionist or patient")
	return cmd
}

func (a *app) usersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage staff users"}

	var req model.CreateUserRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin or receptionist",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.api.CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
	create.Flags().StringVar(&req.Username, "username", "", "username")
	create.Flags().StringVar(&req.Password, "password", "", "password")
	create.Flags().StringVar(&req.Role, "role", "receptionist", "admin or receptionist")

	cmd.AddCommand(create)
	return cmd
}

func (a *app) patientsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "patients", Short: "Manage patients"}

	var req model.CreatePatientRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a patient and its login",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := a.api.CreatePatient(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, patient)
		},
	}
	create.Flags().StringVar(&req.Name, "nombre", "", "name")
	create.Flags().StringVar(&req.Phone, "telefono", "", "phone")
	create.Flags().StringVar(&req.Status, "estado", "ACTIVE", "ACTIVE or INACTIVE")
	create.Flags().StringVar(&req.Username, "username", "", "login username")
	create.Flags().StringVar(&req.Password, "password", "", "login password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, err := a.api.ListPatients(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, patients)
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func (a *app) centersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "centers", Short: "Manage medical centers"}

	var req model.CreateCenterRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a center",
		RunE: func(cmd *cobra.Command, args []string) error {
			center, err := a.api.CreateCenter(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, center)
		},
	}
	create.Flags().StringVar(&req.Name, "nombre", "", "name")
	create.Flags().StringVar(&req.Address, "direccion", "", "address")

	cmd.AddCommand(create)
	return cmd
}

func (a *app) doctorsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "doctors", Short: "Manage doctors"}

	var req model.CreateDoctorRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a doctor and its login",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctor, err := a.api.CreateDoctor(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, doctor)
		},
	}
	create.Flags().StringVar(&req.Name, "nombre", "", "name")
	create.Flags().StringVar(&req.Specialty, "especialidad", "", "specialty")
	create.Flags().Int64Var(&req.CenterID, "centro-id", 0, "center id")
	create.Flags().StringVar(&req.Username, "username", "", "login username")
	create.Flags().StringVar(&req.Password, "password", "", "login password")

	cmd.AddCommand(create)
	return cmd
}

func (a *app) appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "appointments", Aliases: []string{"citas"}, Short: "Book and manage appointments"}

	var (
		req       model.CreateAppointmentRequest
		patientID int64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Book an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientID > 0 {
				req.PatientID = &patientID
			}
			appt, err := a.api.CreateAppointment(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, appt)
		},
	}
	create.Flags().Int64Var(&req.DoctorID, "doctor-id", 0, "doctor id")
	create.Flags().Int64Var(&req.CenterID, "centro-id", 0, "center id")
	create.Flags().StringVar(&req.Date, "fecha", "", "date-time, e.g. 2025-06-01T10:00:00")
	create.Flags().StringVar(&req.Reason, "motivo", "", "reason")
	create.Flags().Int64Var(&patientID, "paciente-id", 0, "patient id (ignored for patients)")

	var q model.AppointmentQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			appts, err := a.api.ListAppointments(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd, appts)
		},
	}
	list.Flags().StringVar(&q.DoctorID, "doctor-id", "", "filter by doctor")
	list.Flags().StringVar(&q.PatientID, "paciente-id", "", "filter by patient")
	list.Flags().StringVar(&q.CenterID, "centro-id", "", "filter by center")
	list.Flags().StringVar(&q.Status, "estado", "", "PENDING or CANCELLED")
	list.Flags().StringVar(&q.Date, "fecha", "", "exact date-time")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			appt, err := a.api.GetAppointment(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, appt)
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			appt, err := a.api.CancelAppointment(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, appt)
		},
	}

	cmd.AddCommand(create, list, get, cancel)
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load centers, patients and doctors from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := client.NewImporter(a.api, a.logger).Import(cmd.Context(), f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created=%d existing=%d failed=%d skipped=%d\n",
				result.Created, result.Existing, result.Failed, result.Skipped)
			return nil
		},
	}
}
