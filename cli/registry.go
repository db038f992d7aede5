// ABOUTME: Registry CLI commands for persons, organizations and referenti
// ABOUTME: Includes the entity search and the filter facets
package cli

import (
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/ufficio/crm"
	"github.com/harperreed/ufficio/models"
)

// AddPersonCommand adds a person to the registry.
func AddPersonCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("add-person", flag.ExitOnError)
	first := fs.String("first", "", "First name (required)")
	last := fs.String("last", "", "Last name (required)")
	fiscal := fs.String("fiscal-code", "", "Codice fiscale")
	city := fs.String("city", "", "City")
	province := fs.String("province", "", "Province code")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	notes := fs.String("notes", "", "Notes")
	_ = fs.Parse(args)

	p, err := env.Svc.AddPerson(env.ctx(), crm.PersonInput{
		FirstName: *first, LastName: *last, FiscalCode: *fiscal,
		City: *city, Province: *province, Email: *email, Phone: *phone, Notes: *notes,
	})
	if err != nil {
		return env.report("add person", err, "")
	}

	env.printf("✓ Person created: %s (ID: %s)\n", p.DisplayName(), p.ID)
	if e := p.Contacts.PrimaryEmail(); e != "" {
		env.printf("  Email: %s\n", e)
	}
	return nil
}

// AddOrganizationCommand creates an organization, optionally with its first
// referente in the same step.
func AddOrganizationCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("add-organization", flag.ExitOnError)
	var in crm.InboundContact
	fs.StringVar(&in.LegalName, "name", "", "Legal name (required)")
	fs.StringVar(&in.VATNumber, "vat", "", "VAT number")
	fs.StringVar(&in.City, "city", "", "City")
	fs.StringVar(&in.Province, "province", "", "Province code")
	fs.StringVar(&in.OrgType, "type", "", "Organization type (spa, srl, ...)")
	fs.StringVar(&in.Email, "email", "", "Organization email")
	fs.StringVar(&in.Phone, "phone", "", "Organization phone")
	fs.StringVar(&in.ContactFirstName, "contact-first", "", "Referente first name")
	fs.StringVar(&in.ContactLastName, "contact-last", "", "Referente last name")
	fs.StringVar(&in.ContactRole, "contact-role", "", "Referente role")
	fs.StringVar(&in.ContactEmail, "contact-email", "", "Referente email")
	fs.StringVar(&in.ContactPhone, "contact-phone", "", "Referente phone")
	_ = fs.Parse(args)

	res, err := env.Svc.QuickCreateOrganization(env.ctx(), in)
	if err != nil {
		return env.report("create organization", err, "")
	}

	env.printf("✓ Organization created: %s (ID: %s)\n", res.Organization.LegalName, res.Organization.ID)
	if res.Person != nil {
		verb := "created"
		if res.ReusedPerson {
			verb = "linked existing person"
		}
		env.printf("  Referente %s: %s, %s\n", verb, res.Person.DisplayName(), res.Affiliation.Role)
	}
	return nil
}

// QuickAffiliateCommand adds a new person as a referente of an organization.
func QuickAffiliateCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("quick-affiliate", flag.ExitOnError)
	org := fs.String("org", "", "Organization ID (required)")
	var in crm.QuickPersonInput
	fs.StringVar(&in.FirstName, "first", "", "First name (required)")
	fs.StringVar(&in.LastName, "last", "", "Last name (required)")
	fs.StringVar(&in.Role, "role", "", "Role at the organization (required)")
	fs.StringVar(&in.Email, "email", "", "Email (email or phone required)")
	fs.StringVar(&in.Phone, "phone", "", "Phone (email or phone required)")
	_ = fs.Parse(args)

	orgID, err := parseID("org", *org)
	if err != nil {
		return err
	}

	p, aff, err := env.Svc.QuickCreateAffiliation(env.ctx(), orgID, in)
	if err != nil {
		return env.report("quick add referente", err, "")
	}
	_ = env.report("quick add referente", nil, fmt.Sprintf("Referente created: %s (%s)", p.DisplayName(), aff.Role))
	return nil
}

// AffiliatesCommand lists an organization's referenti.
func AffiliatesCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("affiliates", flag.ExitOnError)
	org := fs.String("org", "", "Organization ID (required)")
	filter := fs.String("filter", "", "Filter by name, role or email")
	_ = fs.Parse(args)

	orgID, err := parseID("org", *org)
	if err != nil {
		return err
	}

	list, err := env.Svc.ListAffiliates(env.ctx(), orgID, *filter)
	if err != nil {
		return env.report("list referenti", err, "")
	}
	if list.Empty != crm.EmptyNone {
		env.printf("%s\n", list.Empty.Message())
		return nil
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tROLE\tEMAIL\tPHONE\tAFFILIATION ID")
	_, _ = fmt.Fprintln(w, "----\t----\t-----\t-----\t--------------")
	for _, r := range list.Rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Role, dash(r.Email), dash(r.Phone), r.AffiliationID)
	}
	_ = w.Flush()
	env.printf("\n%d of %d referenti\n", len(list.Rows), list.Total)
	return nil
}

// SearchCommand searches persons or organizations.
func SearchCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	kind := fs.String("type", "organization", "person or organization")
	province := fs.String("province", "", "Filter by province")
	orgType := fs.String("org-type", "", "Filter by organization type")
	limit := fs.Int("limit", 50, "Maximum results")
	_ = fs.Parse(args)

	ct, err := models.ParseClientType(*kind)
	if err != nil {
		return err
	}

	res, err := env.Svc.SearchEntities(env.ctx(), crm.EntityQuery{
		Type:     ct,
		Text:     strings.Join(fs.Args(), " "),
		Province: *province,
		OrgType:  *orgType,
		Limit:    *limit,
	})
	if err != nil {
		return env.report("search", err, "")
	}
	if res.Empty != crm.EmptyNone {
		env.printf("%s\n", res.Empty.Message())
		return nil
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	if ct == models.ClientPerson {
		_, _ = fmt.Fprintln(w, "NAME\tTAX CODE\tCITY\tEMAIL\tID")
		_, _ = fmt.Fprintln(w, "----\t--------\t----\t-----\t--")
		for _, r := range res.Rows {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.DisplayName, dash(r.TaxCode), dash(r.City), dash(r.Email), r.ID)
		}
	} else {
		_, _ = fmt.Fprintln(w, "NAME\tPROVINCE\tTYPE\tCITY\tID")
		_, _ = fmt.Fprintln(w, "----\t--------\t----\t----\t--")
		for _, r := range res.Rows {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.DisplayName, dash(r.Province), dash(r.OrgType), dash(r.City), r.ID)
		}
	}
	return w.Flush()
}

// FacetsCommand prints the province and type filter options.
func FacetsCommand(env *Env, args []string) error {
	f, err := env.Svc.FacetOptions(env.ctx())
	if err != nil {
		return env.report("load filters", err, "")
	}
	env.printf("Provinces: %s\n", dash(strings.Join(f.Provinces, ", ")))
	env.printf("Types:     %s\n", dash(strings.Join(f.OrgTypes, ", ")))
	if f.Degraded {
		env.printf("(sampled: the full lists could not be read)\n")
	}
	return nil
}

// EditOrganizationCommand updates the organization fields passed as flags.
func EditOrganizationCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("edit-organization", flag.ExitOnError)
	id := fs.String("id", "", "Organization ID (required)")
	name := fs.String("name", "", "Legal name")
	vat := fs.String("vat", "", "VAT number")
	city := fs.String("city", "", "City")
	province := fs.String("province", "", "Province code")
	orgType := fs.String("type", "", "Organization type")
	notes := fs.String("notes", "", "Notes")
	_ = fs.Parse(args)

	orgID, err := parseID("id", *id)
	if err != nil {
		return err
	}

	var patch crm.OrganizationPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			patch.LegalName = name
		case "vat":
			patch.VATNumber = vat
		case "city":
			patch.City = city
		case "province":
			patch.Province = province
		case "type":
			patch.OrgType = orgType
		case "notes":
			patch.Notes = notes
		}
	})

	org, err := env.Svc.UpdateOrganization(env.ctx(), orgID, patch)
	if err != nil {
		return env.report("update organization", err, "")
	}
	return env.report("update organization", nil, "Organization updated: "+org.DisplayName())
}

// DeleteOrganizationCommand deletes an organization with its affiliations.
func DeleteOrganizationCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("delete-organization", flag.ExitOnError)
	id := fs.String("id", "", "Organization ID (required)")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	_ = fs.Parse(args)

	orgID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	ok, err := env.confirm("Delete organization "+orgID.String()+" and its referenti links?", *yes)
	if err != nil || !ok {
		return err
	}
	return env.report("delete organization", env.Svc.DeleteOrganization(env.ctx(), orgID), "Organization deleted")
}

// RemoveAffiliateCommand unlinks a referente from its organization.
func RemoveAffiliateCommand(env *Env, args []string) error {
	fs := flag.NewFlagSet("remove-affiliate", flag.ExitOnError)
	id := fs.String("id", "", "Affiliation ID (required)")
	_ = fs.Parse(args)

	affID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	return env.report("remove referente", env.Svc.RemoveAffiliation(env.ctx(), affID), "Referente removed")
}
