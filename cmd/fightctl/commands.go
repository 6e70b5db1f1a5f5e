package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cory-johannsen/fightsheet/internal/app"
	"github.com/cory-johannsen/fightsheet/internal/game/death"
	"github.com/cory-johannsen/fightsheet/internal/game/equipment"
	"github.com/cory-johannsen/fightsheet/internal/game/fight"
)

const usage = `  stats                 show effective stats
  loadout               show worn gear
  equip <item> [slot]   equip an item by key or name, slots are 1-3
  unequip <slot>        empty a slot
  heal <n>              add n health
  damage <n>            remove n health
  mana <n>              add n mana (negative spends)
  attack <defender>     resolve one attack
  check                 apply any due death transition
  reset                 restore the default profile
  sweep                 run one revival sweep over every player
`

var errUsage = errors.New("invalid arguments, see -h")

// run executes one command.
//
// Precondition: args is non-empty.
func run(ctx context.Context, a *app.App, out io.Writer, id string, args []string) error {
	cmd, rest := strings.ToLower(args[0]), args[1:]
	if cmd != "sweep" && strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: -player is required", cmd)
	}
	svc := a.Service

	switch cmd {
	case "stats":
		eff, err := svc.GetEffectiveStats(ctx, id)
		if err != nil {
			return err
		}
		printStats(out, id, eff)
		return nil

	case "loadout":
		l, err := svc.GetLoadout(ctx, id)
		if err != nil {
			return err
		}
		printSlots(out, l.Display(a.Catalog))
		return nil

	case "equip":
		if len(rest) < 1 || len(rest) > 2 {
			return errUsage
		}
		var slot *int
		if len(rest) == 2 {
			n, err := parseSlot(rest[1])
			if err != nil {
				return err
			}
			slot = &n
		}
		idx, eff, err := svc.Equip(ctx, id, rest[0], slot)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "equipped %s in slot %d\n", eff.SlotDisplay[idx], idx+1)
		printLoadout(out, eff)
		return nil

	case "unequip":
		if len(rest) != 1 {
			return errUsage
		}
		n, err := parseSlot(rest[0])
		if err != nil {
			return err
		}
		key, eff, err := svc.Unequip(ctx, id, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %s from slot %d\n", a.Catalog.Display(key), n+1)
		printLoadout(out, eff)
		return nil

	case "heal", "damage":
		if len(rest) != 1 {
			return errUsage
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 0 {
			return fmt.Errorf("%s: amount must be a non-negative integer", cmd)
		}
		if cmd == "damage" {
			n = -n
		}
		hp, st, err := svc.AdjustHealth(ctx, id, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "health %d\n%s\n", hp, st.Message)
		return nil

	case "mana":
		if len(rest) != 1 {
			return errUsage
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("mana: amount must be an integer")
		}
		mp, err := svc.AdjustMana(ctx, id, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "mana %d\n", mp)
		return nil

	case "attack":
		if len(rest) != 1 {
			return errUsage
		}
		res, err := svc.Attack(ctx, id, rest[0])
		if err != nil {
			return err
		}
		crit := ""
		if res.Crit {
			crit = " (critical)"
		}
		fmt.Fprintf(out, "%s hits %s for %d%s\n", res.Attacker, res.Defender, res.Damage, crit)
		if res.Healed > 0 {
			fmt.Fprintf(out, "%s heals %d\n", res.Attacker, res.Healed)
		}
		fmt.Fprintf(out, "%s health %d, %s health %d\n", res.Attacker, res.AttackerHealth, res.Defender, res.DefenderHealth)
		if res.DefenderStatus.State == death.Incapacitated {
			fmt.Fprintf(out, "%s is incapacitated. Revival in %s.\n", res.Defender, death.FormatRemaining(res.DefenderStatus.Remaining))
		}
		return nil

	case "check":
		st, err := svc.CheckAndResolveDeath(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, st.Message)
		return nil

	case "reset":
		if err := svc.ResetToDefault(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s reset to the default profile\n", id)
		return nil

	case "sweep":
		if a.Sweeper == nil {
			return errors.New("sweep: fight.sweep_interval is zero, sweeper disabled")
		}
		rep, err := a.Sweeper.SweepOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "sweep %s: checked %d, incapacitated %d, revived %d, timers cleared %d, failed %d\n",
			rep.RunID, rep.Checked, rep.Incapacitated, rep.Revived, rep.TimersCleared, rep.Failed)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// parseSlot converts a 1-based slot argument to a slot index.
func parseSlot(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("slot %q is not a number", s)
	}
	return n - 1, nil
}

func printStats(out io.Writer, id string, eff fight.EffectiveStats) {
	fmt.Fprintf(out, "%s\n", id)
	fmt.Fprintf(out, "  health        %d/%d\n", eff.Health, eff.MaxHealth)
	fmt.Fprintf(out, "  mana          %d/%d\n", eff.Mana, eff.MaxMana)
	fmt.Fprintf(out, "  damage        %.0f-%.0f (+%.0f)\n", eff.DamageMin, eff.DamageMax, eff.AttackDamage)
	fmt.Fprintf(out, "  ability power %.0f\n", eff.AbilityPower)
	fmt.Fprintf(out, "  armor         %.0f\n", eff.Armor)
	fmt.Fprintf(out, "  magic resist  %.0f\n", eff.MagicResist)
	fmt.Fprintf(out, "  crit          %.0f%% x%.2f\n", eff.CritRate*100, eff.CritDamage)
	fmt.Fprintf(out, "  attack speed  %.2f\n", eff.AttackSpeed)
	fmt.Fprintf(out, "  lifesteal     %.0f%%\n", eff.Lifesteal*100)
	fmt.Fprintf(out, "  amplify       %.0f%%\n", eff.Amplify*100)
	fmt.Fprintf(out, "  resistance    %.0f%%\n", eff.Resistance*100)
	printLoadout(out, eff)
}

func printLoadout(out io.Writer, eff fight.EffectiveStats) {
	printSlots(out, eff.SlotDisplay)
}

func printSlots(out io.Writer, slots [equipment.SlotCount]string) {
	for i, s := range slots {
		fmt.Fprintf(out, "  slot %d: %s\n", i+1, s)
	}
}
