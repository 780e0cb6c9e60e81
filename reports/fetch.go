package reports

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

// Source names a table and the selection a view reads it with.
type Source struct {
	Table     string
	Selection string
}

var (
	Profiles     = Source{Table: domain.TableProfiles, Selection: "*"}
	Wallets      = Source{Table: domain.TableWallets, Selection: "*"}
	Transactions = Source{Table: domain.TableTransactions, Selection: "*, profiles(username, email)"}
	Purchases    = Source{Table: domain.TablePurchaseHistory, Selection: "*, profiles(username)"}
	Games        = Source{Table: domain.TableGameResults, Selection: "*, profiles(username)"}
	Violations   = Source{Table: domain.TableViolations, Selection: "*, profiles(username)"}
	Campaigns    = Source{Table: domain.TableCampaigns, Selection: "*"}
	Members      = Source{Table: domain.TableTeamMembers, Selection: "*"}
	ActiveUsers  = Source{Table: domain.TableActiveUsers, Selection: "*"}
)

// Dataset is the typed result of Load. Tables that were not requested stay nil.
type Dataset struct {
	Profiles     []domain.Profile
	Wallets      []domain.Wallet
	Transactions []domain.Transaction
	Purchases    []domain.Purchase
	Games        []domain.GameResult
	Violations   []domain.Violation
	Campaigns    []domain.Campaign
	Members      []domain.TeamMember
	ActiveUsers  []domain.ActiveUser

	// Rows counts the fetched records per table.
	Rows map[string]int
}

// Load fetches every source concurrently. Each fetch is bound to ctx and is
// dropped when another source fails first.
func Load(ctx context.Context, q tables.Querier, sources ...Source) (Dataset, error) {
	results := make([][]tables.Record, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			res := tables.NewResource(gctx, q, src.Table, src.Selection)
			defer res.Close()
			if err := res.Refetch(); err != nil {
				return fmt.Errorf("%s: %w", src.Table, err)
			}
			results[i] = res.Snapshot().Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	d := Dataset{Rows: make(map[string]int, len(sources))}
	for i, src := range sources {
		d.Rows[src.Table] = len(results[i])
		if err := d.decode(src.Table, results[i]); err != nil {
			return Dataset{}, fmt.Errorf("decode %s: %w", src.Table, err)
		}
	}
	return d, nil
}

func (d *Dataset) decode(table string, recs []tables.Record) error {
	var err error
	switch table {
	case domain.TableProfiles:
		d.Profiles, err = tables.Decode[domain.Profile](recs)
	case domain.TableWallets:
		d.Wallets, err = tables.Decode[domain.Wallet](recs)
	case domain.TableTransactions:
		d.Transactions, err = tables.Decode[domain.Transaction](recs)
	case domain.TablePurchaseHistory:
		d.Purchases, err = tables.Decode[domain.Purchase](recs)
	case domain.TableGameResults:
		d.Games, err = tables.Decode[domain.GameResult](recs)
	case domain.TableViolations:
		d.Violations, err = tables.Decode[domain.Violation](recs)
	case domain.TableCampaigns:
		d.Campaigns, err = tables.Decode[domain.Campaign](recs)
	case domain.TableTeamMembers:
		d.Members, err = tables.Decode[domain.TeamMember](recs)
	case domain.TableActiveUsers:
		d.ActiveUsers, err = tables.Decode[domain.ActiveUser](recs)
	}
	return err
}

func (d Dataset) usernames() map[string]string {
	names := make(map[string]string, len(d.Profiles))
	for _, p := range d.Profiles {
		names[p.ID] = p.Username
	}
	return names
}
