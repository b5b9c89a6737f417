package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/moose-rewards/moose/internal/app/rewards"
	"github.com/moose-rewards/moose/internal/domain"
)

// VariantPoints names the rewards bot.
const VariantPoints = "points"

// PointsCommands returns the command table of the rewards bot.
func PointsCommands(svc *rewards.Service) []Command {
	h := pointsHandlers{svc: svc}
	return []Command{
		// ─── Member commands ───
		{
			Name: "register", Description: "Register for the rewards program",
			Access: AccessSelf, Mutates: true,
			Args:   []ArgSpec{{Name: "username", Kind: ArgString, Description: "Minecraft username"}},
			Handle: h.register,
		},
		{
			Name: "points", Description: "Shows your balance",
			Access: AccessSelf,
			Handle: h.points,
		},
		{
			Name: "store", Description: "Opens the point store",
			Access: AccessSelf,
			Handle: h.store,
		},
		{
			Name: "buy", Description: "Buy an item from the point store",
			Access: AccessSelf, Mutates: true,
			Args:   []ArgSpec{{Name: "item", Kind: ArgString, Description: "Name of the item"}},
			Handle: h.buy,
		},
		{
			Name: "referral", Description: "Register for the rewards program through a referral",
			Access: AccessSelf, NeedsTarget: true, Mutates: true,
			Args:   []ArgSpec{{Name: "username", Kind: ArgString, Description: "Minecraft username"}},
			Handle: h.referral,
		},

		// ─── Admin commands ───
		{
			Name: "give", Description: "Gives balance",
			Access: AccessAdmin, NeedsTarget: true, Mutates: true,
			Args:   []ArgSpec{{Name: "amount", Kind: ArgInt}},
			Handle: h.give,
		},
		{
			Name: "remove", Description: "Removes balance",
			Access: AccessAdmin, NeedsTarget: true, Mutates: true,
			Args:   []ArgSpec{{Name: "amount", Kind: ArgInt}},
			Handle: h.remove,
		},
		{
			Name: "additem", Description: "Add or update an item in the point store",
			Access: AccessAdmin, Mutates: true,
			Args: []ArgSpec{
				{Name: "name", Kind: ArgString, Description: "Name of the item"},
				{Name: "cost", Kind: ArgInt, Description: "Cost in points"},
				{Name: "description", Kind: ArgString, Optional: true, Description: "Description of the item"},
			},
			Handle: h.addItem,
		},
		{
			Name: "removeitem", Description: "Remove an item from the point store",
			Access: AccessAdmin, Mutates: true,
			Args:   []ArgSpec{{Name: "name", Kind: ArgString, Description: "Name of the item"}},
			Handle: h.removeItem,
		},
		{
			Name: "inventory", Description: "View a user's purchased inventory",
			Access: AccessAdmin, NeedsTarget: true,
			Handle: h.inventory,
		},
		{
			Name: "removeuseritem", Description: "Remove the oldest copy of an item from a user's inventory",
			Access: AccessAdmin, NeedsTarget: true, Mutates: true,
			Args:   []ArgSpec{{Name: "item", Kind: ArgString, Description: "Name of the item"}},
			Handle: h.removeUserItem,
		},
		{
			Name: "ticketsetup", Description: "Set the message whose 🎫 reaction opens a ticket",
			Access: AccessAdmin, Mutates: true,
			Args:   []ArgSpec{{Name: "message_id", Kind: ArgString}},
			Handle: h.ticketSetup,
		},
		{
			Name: "sweep", Description: "Delete expired point entries now",
			Access: AccessAdmin, Mutates: true,
			Handle: h.sweep,
		},
	}
}

type pointsHandlers struct {
	svc *rewards.Service
}

func (h pointsHandlers) register(ctx context.Context, req *Request) (Reply, error) {
	acct, err := h.svc.Register(ctx, req.ActorID, req.Args.String("username"))
	if err != nil {
		return Reply{}, err
	}
	return ephemeral(fmt.Sprintf("Registered %s successfully!", acct.DisplayName)), nil
}

func (h pointsHandlers) points(ctx context.Context, req *Request) (Reply, error) {
	bal, err := h.svc.Balance(ctx, req.ActorID)
	if err != nil {
		return Reply{}, err
	}
	return ephemeral(fmt.Sprintf("You have **%d** points.", bal)), nil
}

func (h pointsHandlers) store(ctx context.Context, req *Request) (Reply, error) {
	items, err := h.svc.Items(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return ephemeral("The store is empty right now."), nil
	}
	embed := &Embed{Title: "Point Store", Description: "Use /buy with the item name to purchase."}
	for _, it := range items {
		embed.Fields = append(embed.Fields, Field{
			Name:  fmt.Sprintf("%s - %d pts", it.Name, it.Cost),
			Value: it.Description,
		})
	}
	return Reply{Embed: embed, Ephemeral: true}, nil
}

func (h pointsHandlers) buy(ctx context.Context, req *Request) (Reply, error) {
	item, err := h.svc.Purchase(ctx, req.ActorID, req.Args.String("item"))
	if err != nil {
		return Reply{}, err
	}
	req.Audit("%s bought %s", req.ActorName, item.ItemName)
	return ephemeral(fmt.Sprintf("You bought **%s**!", item.ItemName)), nil
}

func (h pointsHandlers) referral(ctx context.Context, req *Request) (Reply, error) {
	if req.TargetID == req.ActorID {
		return Reply{}, domain.ErrSelfReferral
	}
	if _, err := h.svc.Referral(ctx, req.ActorID, req.Args.String("username"), req.TargetID); err != nil {
		return Reply{}, err
	}
	bonus := h.svc.ReferralBonus()
	req.Audit("%s registered through a referral from %s (+%d points)", req.ActorName, req.SubjectName, bonus)
	return ephemeral(fmt.Sprintf("Registered successfully! %s has earned %d points for referring you.", req.SubjectName, bonus)), nil
}

func (h pointsHandlers) give(ctx context.Context, req *Request) (Reply, error) {
	amount := req.Args.Int("amount")
	if _, err := h.svc.Grant(ctx, req.TargetID, amount, 0); err != nil {
		return Reply{}, err
	}
	req.Audit("%s gave %d points to %s", req.ActorName, amount, req.SubjectName)
	return ephemeral(fmt.Sprintf("Gave **%d** points to %s!", amount, req.SubjectName)), nil
}

func (h pointsHandlers) remove(ctx context.Context, req *Request) (Reply, error) {
	amount := req.Args.Int("amount")
	if err := h.svc.Spend(ctx, req.TargetID, amount); err != nil {
		return Reply{}, err
	}
	req.Audit("%s removed %d points from %s", req.ActorName, amount, req.SubjectName)
	return ephemeral(fmt.Sprintf("Removed **%d** points from %s!", amount, req.SubjectName)), nil
}

func (h pointsHandlers) addItem(ctx context.Context, req *Request) (Reply, error) {
	name := req.Args.String("name")
	created, err := h.svc.UpsertItem(ctx, name, req.Args.Int("cost"), req.Args.String("description"))
	if err != nil {
		return Reply{}, err
	}
	if created {
		return ephemeral(fmt.Sprintf("Added item **%s** to the store.", name)), nil
	}
	return ephemeral(fmt.Sprintf("Updated item **%s** in the store.", name)), nil
}

func (h pointsHandlers) removeItem(ctx context.Context, req *Request) (Reply, error) {
	name := req.Args.String("name")
	if err := h.svc.RemoveItem(ctx, name); err != nil {
		return Reply{}, err
	}
	return ephemeral(fmt.Sprintf("Removed item **%s** from the store.", name)), nil
}

func (h pointsHandlers) inventory(ctx context.Context, req *Request) (Reply, error) {
	entries, err := h.svc.Inventory(ctx, req.TargetID)
	if err != nil {
		return Reply{}, err
	}
	if len(entries) == 0 {
		return ephemeral(fmt.Sprintf("%s has no items in their inventory.", req.SubjectName)), nil
	}
	embed := &Embed{Title: req.SubjectName + "'s Inventory"}
	for _, e := range entries {
		value := e.Description
		if strings.TrimSpace(value) == "" {
			value = "-"
		}
		embed.Fields = append(embed.Fields, Field{
			Name:  e.ItemName,
			Value: fmt.Sprintf("%s\nPurchased: %s", value, e.PurchasedAt.Format("2006-01-02 15:04 UTC")),
		})
	}
	return Reply{Embed: embed, Ephemeral: true}, nil
}

func (h pointsHandlers) removeUserItem(ctx context.Context, req *Request) (Reply, error) {
	removed, err := h.svc.RemoveInventoryItem(ctx, req.TargetID, req.Args.String("item"))
	if err != nil {
		return Reply{}, err
	}
	req.Audit("%s removed %s from %s's inventory", req.ActorName, removed.ItemName, req.SubjectName)
	return ephemeral(fmt.Sprintf("Removed **%s** from %s's inventory.", removed.ItemName, req.SubjectName)), nil
}

func (h pointsHandlers) ticketSetup(ctx context.Context, req *Request) (Reply, error) {
	id := req.Args.String("message_id")
	if err := h.svc.SetTicketPrompt(ctx, id); err != nil {
		return Reply{}, err
	}
	return ephemeral(fmt.Sprintf("Ticket prompt set to message %s. React with %s to open a ticket.", id, domain.TicketEmoji)), nil
}

func (h pointsHandlers) sweep(ctx context.Context, req *Request) (Reply, error) {
	n, err := h.svc.Sweep(ctx)
	if err != nil {
		return Reply{}, err
	}
	return ephemeral(fmt.Sprintf("Removed %d expired point entries.", n)), nil
}
