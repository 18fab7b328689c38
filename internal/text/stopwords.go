package text

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+['’]|[\p{L}\p{N}]+(?:[-_][\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`)

// Tokenize splits s into word and punctuation tokens. Elided French articles
// ("l'", "d'") are tokens of their own.
func Tokenize(s string) []string {
	return tokenRe.FindAllString(s, -1)
}

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var stopWordLists = map[string]string{
	"fr": `a à â abord afin ah ai aie ainsi allaient allo allô allons après assez attendu au aucun aucune
aujourd aupres auquel aura auront aussi autre autres aux auxquelles auxquels avaient avais avait avant avec
avoir ayant b bah beaucoup bien bigre boum bravo brrr c ça car ce ceci cela celle celles celui cent cependant
certain certaine certaines certains certes ces cet cette ceux chacun chaque cher chez ci cinq comme comment
d dans de debout dedans dehors delà depuis derrière des dès désormais desquelles desquels dessous dessus deux
devant devers dire divers diverse diverses doit donc dont du duquel durant e effet eh elle elles en encore
entre envers environ es ès est et etc été étaient étais était étant être eu euh eux excepté f façon fais
faisaient faisant fait feront fi flac floc font g gens h ha hé hein hélas hem hep hi ho holà hop hormis hors
hou houp hue hui huit hum hurrah i il ils importe j je jusqu jusque k l la là laquelle le lequel les
lesquelles lesquels leur leurs longtemps lorsque lui m ma maint mais malgré me même mêmes merci mes mien
mienne miennes miens mille mince moi moins mon moyennant n na ne néanmoins neuf ni nombreuses nombreux non
nos notre nôtre nôtres nous nouveau o ô oh ohé olé ollé on ont onze ore ou où ouf ouias oust ouste outre
p paf pan par parmi partant particulier particulière particulièrement pas passé pendant personne peu peut
peuvent peux pff pfft pfut pif plein plouf plus plusieurs plutôt pouah pour pourquoi premier première
premièrement près proche psitt puisque q qu quand quant quanta quarante quatorze quatre quatre-vingt quatrième
quatrièmement que quel quelconque quelle quelles quelque quelques quels qui quiconque quinze quoi quoique
r revoici revoilà rien s sa sacrebleu sans sapristi sauf se seize selon sept sera seront ses si sien sienne
siennes siens sinon six soi soit soixante son sont sous stop suis suivant sur surtout t ta tac tant te té
tel telle tellement telles tels tenant tes tic tien tienne tiennes tiens toc toi ton touchant toujours tous
tout toute toutes treize trente très trois troisième troisièmement tu u un une unes uns v va vais vas vé
vers via vif vifs vingt vivat vive vives vlan voici voilà vont vos votre vôtre vôtres vous vu w x y z zut
l' d' j' m' n' s' t' c' qu' jusqu' lorsqu' puisqu' quoiqu' l’ d’ j’ m’ n’ s’ t’ c’ qu’`,
	"en": `a about above after again against all almost also am among an and any are as at be because been
before being below between both but by can cannot could did do does doing done down during each either
else enough even ever every few for from further get give go had has have having he her here hers herself
him himself his how however i if in indeed into is it its itself just keep least less made make many may
me might mine more most mostly much must my myself neither never nevertheless next no nobody none noone nor
not nothing now nowhere of off often on once one only onto or other others otherwise our ours ourselves
out over own part per perhaps please put quite rather re really regarding same say see seem seemed seeming
seems several she should show side since so some somehow someone something sometime sometimes somewhere
still such take than that the their theirs them themselves then there thereafter thereby therefore these
they this those though through throughout thru thus to together too toward towards under unless until up
upon us used using various very via was we well were what whatever when whence whenever where whereafter
whereas whereby wherein whereupon wherever whether which while whither who whoever whole whom whose why
will with within without would yet you your yours yourself yourselves 's 'd 'll 'm 're 've n't`,
}

// StopWords returns the stop words of lang together with every ASCII
// punctuation character. Unknown languages get punctuation only.
func StopWords(lang string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(stopWordLists[lang]) {
		set[w] = struct{}{}
	}
	for _, p := range punctuation {
		set[string(p)] = struct{}{}
	}
	return set
}

// RemoveStopWords drops stop tokens from phrase and rejoins the rest with
// single spaces.
func RemoveStopWords(phrase string, stop map[string]struct{}) string {
	tokens := Tokenize(phrase)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, ok := stop[tok]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}
