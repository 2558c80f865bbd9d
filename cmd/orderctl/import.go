package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"workorders_backend/internal/orders/domain"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import orders from a YAML export",
		Long: "Reads one or more orders from a YAML file and stores them unchanged. " +
			"Assignments may use the structured assignedUsers list or the older assignedTo/assignedToName fields.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			orders, err := parseOrders(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if dryRun {
				return printImportPlan(cmd.OutOrStdout(), orders)
			}
			return runImport(cmd, orders)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing")
	return cmd
}

func runImport(cmd *cobra.Command, orders []*domain.Order) error {
	rt, err := openRuntime(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	for _, order := range orders {
		if err := rt.orders.Import(cmd.Context(), order); err != nil {
			return fmt.Errorf("import %q: %w", order.Title, err)
		}
		fmt.Fprintf(out, "imported %s (%s, %s)\n", order.ID, order.Status, domain.Classify(order.Assignment).Kind())
	}
	fmt.Fprintf(out, "%d orders imported\n", len(orders))
	return nil
}

func printImportPlan(out io.Writer, orders []*domain.Order) error {
	for _, order := range orders {
		fmt.Fprintf(out, "%s\t%s\t%d workers\n", order.Title, domain.Classify(order.Assignment).Kind(), len(order.Workers()))
	}
	fmt.Fprintf(out, "%d orders parsed\n", len(orders))
	return nil
}

// yamlOrder is the export format. It mirrors the stored document so that every
// historical assignment shape round-trips.
type yamlOrder struct {
	ID                   string        `yaml:"id"`
	Title                string        `yaml:"title"`
	Description          string        `yaml:"description"`
	Category             string        `yaml:"category"`
	Priority             string        `yaml:"priority"`
	Status               string        `yaml:"status"`
	ClientName           string        `yaml:"clientName"`
	ProjectName          string        `yaml:"projectName"`
	ManagerID            string        `yaml:"managerId"`
	ManagerName          string        `yaml:"managerName"`
	ScheduledStart       *time.Time    `yaml:"scheduledStart"`
	ScheduledEnd         *time.Time    `yaml:"scheduledEnd"`
	ConfirmationDeadline *time.Time    `yaml:"confirmationDeadline"`
	TotalTimeSpent       *int          `yaml:"totalTimeSpent"`
	AssignedUsers        *[]yamlWorker `yaml:"assignedUsers"`
	AssignedTo           stringOrList  `yaml:"assignedTo"`
	AssignedToName       stringOrList  `yaml:"assignedToName"`
	CreatedAt            time.Time     `yaml:"createdAt"`
}

type yamlWorker struct {
	UserID          string     `yaml:"userId"`
	Name            string     `yaml:"name"`
	Status          string     `yaml:"status"`
	IsTeamLead      bool       `yaml:"isTeamLead"`
	Notify          *bool      `yaml:"notify"`
	TimeSpent       *int       `yaml:"timeSpent"`
	TimeNotes       string     `yaml:"timeNotes"`
	RejectionReason string     `yaml:"rejectionReason"`
	RespondedAt     *time.Time `yaml:"respondedAt"`
}

// stringOrList accepts a YAML scalar or a sequence of scalars.
type stringOrList domain.StringOrList

func (s *stringOrList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = stringOrList{}
			return nil
		}
		*s = stringOrList(domain.ScalarValue(node.Value))
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*s = stringOrList(domain.ListValue(values...))
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// parseOrders accepts a single order, a list of orders, or a stream of
// documents holding either.
func parseOrders(data []byte) ([]*domain.Order, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var orders []*domain.Order
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(node.Content) == 0 {
			continue
		}

		var docs []yamlOrder
		root := node.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			if err := root.Decode(&docs); err != nil {
				return nil, err
			}
		case yaml.MappingNode:
			var doc yamlOrder
			if err := root.Decode(&doc); err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		default:
			return nil, fmt.Errorf("line %d: expected an order or a list of orders", root.Line)
		}

		for i := range docs {
			order, err := docs[i].toDomain()
			if err != nil {
				return nil, err
			}
			orders = append(orders, order)
		}
	}
	if len(orders) == 0 {
		return nil, errors.New("no orders found")
	}
	return orders, nil
}

func (y yamlOrder) toDomain() (*domain.Order, error) {
	title := strings.TrimSpace(y.Title)
	if title == "" {
		return nil, fmt.Errorf("order %q has no title", y.ID)
	}

	order := &domain.Order{
		ID:                   strings.TrimSpace(y.ID),
		Title:                title,
		Description:          y.Description,
		Category:             y.Category,
		Priority:             domain.Priority(strings.ToLower(strings.TrimSpace(y.Priority))),
		Status:               domain.OrderStatus(strings.TrimSpace(y.Status)),
		ClientName:           y.ClientName,
		ProjectName:          y.ProjectName,
		ManagerID:            y.ManagerID,
		ManagerName:          y.ManagerName,
		ScheduledStart:       y.ScheduledStart,
		ScheduledEnd:         y.ScheduledEnd,
		ConfirmationDeadline: y.ConfirmationDeadline,
		TotalTimeSpent:       y.TotalTimeSpent,
		CreatedAt:            y.CreatedAt,
		Assignment: domain.RawAssignment{
			AssignedTo:     domain.StringOrList(y.AssignedTo),
			AssignedToName: domain.StringOrList(y.AssignedToName),
		},
	}

	if y.AssignedUsers != nil {
		users := make([]domain.WorkerAssignment, 0, len(*y.AssignedUsers))
		for _, w := range *y.AssignedUsers {
			status := domain.WorkerStatus(strings.TrimSpace(w.Status))
			if status == "" {
				status = domain.WorkerPending
			}
			users = append(users, domain.WorkerAssignment{
				UserID:          strings.TrimSpace(w.UserID),
				Name:            w.Name,
				Status:          status,
				IsTeamLead:      w.IsTeamLead,
				Notify:          w.Notify,
				TimeSpent:       w.TimeSpent,
				TimeNotes:       w.TimeNotes,
				RejectionReason: w.RejectionReason,
				RespondedAt:     w.RespondedAt,
			})
		}
		order.Assignment.Users = users
	}
	return order, nil
}
